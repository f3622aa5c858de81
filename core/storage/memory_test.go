package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/botfactory/chainbot/core/chain"
)

func TestMemoryGraphStoreReplace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()

	store.Put(chain.NewGraph(chain.Chain{ID: 1, FirstStepID: 10}, []*chain.Step{
		{ID: 10, ChainID: 1, Name: "old"},
		{ID: 11, ChainID: 1, Name: "gone"},
	}))
	store.Put(chain.NewGraph(chain.Chain{ID: 1, FirstStepID: 10}, []*chain.Step{
		{ID: 10, ChainID: 1, Name: "new"},
	}))

	s, err := store.StepByID(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, "new", s.Name)

	_, err = store.StepByID(ctx, 11)
	require.ErrorIs(t, err, chain.ErrStepNotFound)

	store.Remove(1)
	_, err = store.ChainRoot(ctx, 1)
	require.ErrorIs(t, err, chain.ErrChainNotFound)
	_, err = store.StepByID(ctx, 10)
	require.ErrorIs(t, err, chain.ErrStepNotFound)
}

func TestMemoryGraphStoreRootMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()
	store.Put(chain.NewGraph(chain.Chain{ID: 1}, []*chain.Step{{ID: 10, ChainID: 1}}))

	_, err := store.ChainRoot(ctx, 1)
	require.ErrorIs(t, err, chain.ErrStepNotFound)
}

func TestMemorySessionStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	s, err := store.GetOrCreate(ctx, 1, 7, 3, 30)
	require.NoError(t, err)
	require.Equal(t, int64(30), s.StepID)

	// Mutating the returned copy must not leak into the store.
	s.Answers = map[string]string{"hacked": "yes"}
	got, err := store.Get(ctx, 1, 7)
	require.NoError(t, err)
	require.Empty(t, got.Answers)

	_, err = store.Get(ctx, 1, 8)
	require.ErrorIs(t, err, chain.ErrSessionNotFound)
}

func TestMemorySessionStoreKeepsAnswersAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	s, err := store.GetOrCreate(ctx, 1, 7, 3, 30)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, s, "mood", "Good"))

	// Entering the chain again repositions but keeps collected answers.
	s, err = store.GetOrCreate(ctx, 1, 7, 3, 30)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"mood": "Good"}, s.Answers)
}

func TestMemorySessionStoreListResults(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	base := time.Now().UTC()
	for i := int64(1); i <= 5; i++ {
		s := &chain.Session{
			BotID: 1, UserID: i, ChainID: 3, StepID: 30,
			User:      chain.User{ID: i},
			Answers:   map[string]string{"mood": "Good"},
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Save(ctx, s))
	}
	// A session with no answers yet does not show up as a result.
	require.NoError(t, store.Save(ctx, &chain.Session{BotID: 1, UserID: 99, ChainID: 3, StepID: 30}))

	page, err := store.ListResults(ctx, 1, 3, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Equal(t, int64(5), page.Items[0].User.ID)
	require.Equal(t, int64(4), page.Items[1].User.ID)

	last, err := store.ListResults(ctx, 1, 3, 3, 2)
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	require.Equal(t, int64(1), last.Items[0].User.ID)

	// Pages past the end are empty, not an error.
	empty, err := store.ListResults(ctx, 1, 3, 9, 2)
	require.NoError(t, err)
	require.Empty(t, empty.Items)
}

func TestMemoryMenuStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMenuStore()

	_, err := store.Menu(ctx, 1)
	require.ErrorIs(t, err, chain.ErrMenuNotFound)

	store.Put(1, &chain.Menu{BotID: 1, Buttons: []chain.MenuButton{
		{ID: 1, BotID: 1, Text: "Survey", ChainID: 3},
	}})

	btn, err := store.ButtonByText(ctx, 1, "Survey")
	require.NoError(t, err)
	require.Equal(t, int64(3), btn.ChainID)

	_, err = store.ButtonByText(ctx, 1, "Nope")
	require.ErrorIs(t, err, chain.ErrMenuButtonNotFound)
}
