package chain_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/botfactory/chainbot/core/chain"
	"github.com/botfactory/chainbot/core/storage"
)

const testBotID = int64(42)

type sentReplies struct {
	mu      sync.Mutex
	replies []chain.Reply
}

func (s *sentReplies) Send(_ context.Context, r chain.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
	return nil
}

func (s *sentReplies) last(t *testing.T) chain.Reply {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.replies, "expected at least one outbound message")
	return s.replies[len(s.replies)-1]
}

func (s *sentReplies) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// testFixture wires an engine over the in-memory stores with a three step
// survey: pick a color by button, type a reason, done.
type testFixture struct {
	engine   *chain.Engine
	graphs   *storage.MemoryGraphStore
	sessions *storage.MemorySessionStore
	out      *sentReplies
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	graphs := storage.NewMemoryGraphStore()
	graphs.Put(chain.NewGraph(
		chain.Chain{ID: 1, BotID: testBotID, Name: "survey", FirstStepID: 10},
		[]*chain.Step{
			{ID: 10, ChainID: 1, Name: "color", Message: "Pick a color", Buttons: []chain.Button{
				{ID: 100, StepID: 10, Text: "Red", CallbackID: "cb-red", NextStepID: 11},
				{ID: 101, StepID: 10, Text: "Blue", CallbackID: "cb-blue", NextStepID: 11},
				{ID: 102, StepID: 10, Text: "Skip", CallbackID: "cb-skip"},
			}},
			{ID: 11, ChainID: 1, Name: "reason", Message: "Why?", TextInput: true, NextStepID: 12},
			{ID: 12, ChainID: 1, Name: "thanks", Message: "Thanks!"},
		},
	))

	menu := storage.NewMemoryMenuStore()
	menu.Put(testBotID, &chain.Menu{
		BotID:          testBotID,
		WelcomeMessage: "Hello there",
		Buttons: []chain.MenuButton{
			{ID: 1, BotID: testBotID, Text: "Survey", ChainID: 1},
			{ID: 2, BotID: testBotID, Text: "About", ReplyText: "We make bots."},
			{ID: 3, BotID: testBotID, Text: "Soon"},
		},
	})

	sessions := storage.NewMemorySessionStore()
	out := &sentReplies{}

	engine, err := chain.NewEngine(chain.Options{
		Bot: chain.BotConfig{
			ID:             testBotID,
			DefaultReply:   "Sorry, what?",
			WelcomeMessage: "Welcome",
		},
		Graphs:   graphs,
		Sessions: sessions,
		Results:  sessions,
		Menu:     menu,
		Out:      out,
	})
	require.NoError(t, err)

	return &testFixture{engine: engine, graphs: graphs, sessions: sessions, out: out}
}

func textUpdate(userID int64, text string) chain.Update {
	return chain.Update{
		BotID:   testBotID,
		ChatID:  userID,
		From:    chain.User{ID: userID, Username: fmt.Sprintf("user%d", userID)},
		Kind:    chain.UpdateText,
		Payload: text,
	}
}

func callbackUpdate(userID int64, callbackID string) chain.Update {
	return chain.Update{
		BotID:   testBotID,
		ChatID:  userID,
		From:    chain.User{ID: userID, Username: fmt.Sprintf("user%d", userID)},
		Kind:    chain.UpdateCallback,
		Payload: callbackID,
	}
}

func (f *testFixture) session(t *testing.T, userID int64) *chain.Session {
	t.Helper()
	s, err := f.sessions.Get(context.Background(), testBotID, userID)
	require.NoError(t, err)
	return s
}

func TestEngineStartShowsMenu(t *testing.T) {
	f := newTestFixture(t)

	require.NoError(t, f.engine.HandleStart(context.Background(), textUpdate(7, "/start")))

	reply := f.out.last(t)
	require.Equal(t, "Hello there", reply.Text)
	require.Equal(t, []string{"Survey", "About", "Soon"}, reply.Menu)
}

func TestEngineMenuEntersChain(t *testing.T) {
	f := newTestFixture(t)

	require.NoError(t, f.engine.HandleUpdate(context.Background(), textUpdate(7, "Survey")))

	reply := f.out.last(t)
	require.Equal(t, "Pick a color", reply.Text)
	require.Len(t, reply.Keyboard, 3)
	require.Equal(t, "cb-red", reply.Keyboard[0].CallbackID)

	sess := f.session(t, 7)
	require.Equal(t, int64(1), sess.ChainID)
	require.Equal(t, int64(10), sess.StepID)
	require.Equal(t, "user7", sess.User.Username)
}

func TestEngineMenuReplyText(t *testing.T) {
	f := newTestFixture(t)

	require.NoError(t, f.engine.HandleUpdate(context.Background(), textUpdate(7, "About")))
	require.Equal(t, "We make bots.", f.out.last(t).Text)
}

func TestEngineIdleUnmatched(t *testing.T) {
	f := newTestFixture(t)

	// Unknown text, a menu button with nothing wired, and a stray button
	// press all land on the default reply.
	for _, upd := range []chain.Update{
		textUpdate(7, "blah"),
		textUpdate(7, "Soon"),
		callbackUpdate(7, "cb-red"),
	} {
		require.NoError(t, f.engine.HandleUpdate(context.Background(), upd))
		require.Equal(t, "Sorry, what?", f.out.last(t).Text)
	}
}

func TestEngineButtonAdvances(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "Survey")))
	require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(7, "cb-red")))

	reply := f.out.last(t)
	require.Equal(t, "Why?", reply.Text)
	require.True(t, reply.AwaitText)

	sess := f.session(t, 7)
	require.Equal(t, int64(11), sess.StepID)
	require.Equal(t, map[string]string{"color": "Red"}, sess.Answers)
}

func TestEngineCallbackAtTextPromptUnmatched(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "Survey")))
	require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(7, "cb-red")))

	// A stale button press while the bot waits for text changes nothing.
	require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(7, "cb-red")))
	require.Equal(t, "Sorry, what?", f.out.last(t).Text)

	sess := f.session(t, 7)
	require.Equal(t, int64(11), sess.StepID)
	require.Equal(t, map[string]string{"color": "Red"}, sess.Answers)
}

func TestEngineUnknownCallbackUnmatched(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "Survey")))
	require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(7, "cb-gone")))

	require.Equal(t, "Sorry, what?", f.out.last(t).Text)
	require.Equal(t, int64(10), f.session(t, 7).StepID)
}

func TestEngineFullRun(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "Survey")))
	require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(7, "cb-blue")))
	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "it is calm")))

	// At the terminal step any input gets the default reply.
	sent := f.out.count()
	require.Equal(t, "Thanks!", f.out.last(t).Text)
	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "hello?")))
	require.Equal(t, sent+1, f.out.count())
	require.Equal(t, "Sorry, what?", f.out.last(t).Text)

	sess := f.session(t, 7)
	require.Equal(t, int64(12), sess.StepID)
	require.Equal(t, map[string]string{
		"color":  "Blue",
		"reason": "it is calm",
	}, sess.Answers)
}

func TestEngineButtonWithoutTargetExitsChain(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "Survey")))
	sent := f.out.count()
	require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(7, "cb-skip")))

	// Exit is silent: the answer is recorded and no message goes out.
	require.Equal(t, sent, f.out.count())
	sess := f.session(t, 7)
	require.Equal(t, int64(0), sess.StepID)
	require.Equal(t, map[string]string{"color": "Skip"}, sess.Answers)

	// Back at idle the menu works again.
	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "About")))
	require.Equal(t, "We make bots.", f.out.last(t).Text)
}

func TestEngineDanglingCurrentStep(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "Survey")))

	// The dashboard deletes the chain's steps while the user is inside.
	f.graphs.Remove(1)

	require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(7, "cb-red")))
	require.Equal(t, "Sorry, what?", f.out.last(t).Text)
	require.Equal(t, int64(10), f.session(t, 7).StepID)
}

func TestEngineDanglingTargetStep(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	graphs := storage.NewMemoryGraphStore()
	graphs.Put(chain.NewGraph(
		chain.Chain{ID: 2, BotID: testBotID, Name: "broken", FirstStepID: 20},
		[]*chain.Step{
			{ID: 20, ChainID: 2, Name: "broken", Message: "Go", Buttons: []chain.Button{
				{ID: 200, StepID: 20, Text: "On", CallbackID: "cb-on", NextStepID: 999},
			}},
		},
	))
	menu := storage.NewMemoryMenuStore()
	menu.Put(testBotID, &chain.Menu{BotID: testBotID, Buttons: []chain.MenuButton{
		{ID: 1, BotID: testBotID, Text: "Go", ChainID: 2},
	}})

	engine, err := chain.NewEngine(chain.Options{
		Bot:      chain.BotConfig{ID: testBotID, DefaultReply: "Sorry, what?"},
		Graphs:   graphs,
		Sessions: f.sessions,
		Results:  f.sessions,
		Menu:     menu,
		Out:      f.out,
	})
	require.NoError(t, err)

	require.NoError(t, engine.HandleUpdate(ctx, textUpdate(7, "Go")))
	require.NoError(t, engine.HandleUpdate(ctx, callbackUpdate(7, "cb-on")))

	// The broken link is never followed and the session stays put.
	require.Equal(t, "Sorry, what?", f.out.last(t).Text)
	sess := f.session(t, 7)
	require.Equal(t, int64(20), sess.StepID)
	require.Empty(t, sess.Answers)
}

func TestEngineCycleOverwritesAnswer(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	graphs := storage.NewMemoryGraphStore()
	graphs.Put(chain.NewGraph(
		chain.Chain{ID: 3, BotID: testBotID, Name: "loop", FirstStepID: 30},
		[]*chain.Step{
			{ID: 30, ChainID: 3, Name: "mood", Message: "How do you feel?", Buttons: []chain.Button{
				{ID: 300, StepID: 30, Text: "Good", CallbackID: "cb-good", NextStepID: 31},
				{ID: 301, StepID: 30, Text: "Bad", CallbackID: "cb-bad", NextStepID: 31},
			}},
			{ID: 31, ChainID: 3, Name: "again", Message: "Sure?", Buttons: []chain.Button{
				{ID: 310, StepID: 31, Text: "Retry", CallbackID: "cb-retry", NextStepID: 30},
				{ID: 311, StepID: 31, Text: "Done", CallbackID: "cb-done"},
			}},
		},
	))
	menu := storage.NewMemoryMenuStore()
	menu.Put(testBotID, &chain.Menu{BotID: testBotID, Buttons: []chain.MenuButton{
		{ID: 1, BotID: testBotID, Text: "Loop", ChainID: 3},
	}})

	engine, err := chain.NewEngine(chain.Options{
		Bot:      chain.BotConfig{ID: testBotID, DefaultReply: "Sorry, what?"},
		Graphs:   graphs,
		Sessions: f.sessions,
		Results:  f.sessions,
		Menu:     menu,
		Out:      f.out,
	})
	require.NoError(t, err)

	require.NoError(t, engine.HandleUpdate(ctx, textUpdate(7, "Loop")))
	require.NoError(t, engine.HandleUpdate(ctx, callbackUpdate(7, "cb-good")))
	require.NoError(t, engine.HandleUpdate(ctx, callbackUpdate(7, "cb-retry")))
	require.NoError(t, engine.HandleUpdate(ctx, callbackUpdate(7, "cb-bad")))
	require.NoError(t, engine.HandleUpdate(ctx, callbackUpdate(7, "cb-done")))

	sess := f.session(t, 7)
	require.Equal(t, int64(0), sess.StepID)
	require.Equal(t, map[string]string{
		"mood":  "Bad",
		"again": "Done",
	}, sess.Answers)
}

func TestEngineChainResults(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	for userID := int64(1); userID <= 3; userID++ {
		require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(userID, "Survey")))
		require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(userID, "cb-red")))
		require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(userID, fmt.Sprintf("reason %d", userID))))
	}

	page, err := f.engine.ChainResults(ctx, 1, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)

	// Most recent interaction first.
	require.Equal(t, "user3", page.Items[0].User.Username)
	require.Equal(t, map[string]string{
		"color":  "Red",
		"reason": "reason 3",
	}, page.Items[0].Answers)

	page2, err := f.engine.ChainResults(ctx, 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	require.Equal(t, "user1", page2.Items[0].User.Username)
}

func TestEngineChainTree(t *testing.T) {
	f := newTestFixture(t)

	tree, err := f.engine.ChainTree(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, tree)
	require.Equal(t, "color", tree.Name)
	require.Len(t, tree.Buttons, 3)
	require.Equal(t, "reason", tree.Buttons[0].NextStep.Name)

	_, err = f.engine.ChainTree(context.Background(), 404)
	require.ErrorIs(t, err, chain.ErrChainNotFound)
}

func TestEngineUsersIsolated(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(1, "Survey")))
	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(2, "Survey")))
	require.NoError(t, f.engine.HandleUpdate(ctx, callbackUpdate(1, "cb-red")))

	require.Equal(t, int64(11), f.session(t, 1).StepID)
	require.Equal(t, int64(10), f.session(t, 2).StepID)
	require.Empty(t, f.session(t, 2).Answers)
}

func TestEngineConcurrentUpdates(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleUpdate(ctx, textUpdate(7, "Survey")))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.engine.HandleUpdate(ctx, callbackUpdate(7, "cb-red"))
		}()
	}
	wg.Wait()

	// Exactly one press advances; the rest arrive at the text prompt and
	// fall through to the default reply. The answer map never forks.
	sess := f.session(t, 7)
	require.Equal(t, int64(11), sess.StepID)
	require.Equal(t, map[string]string{"color": "Red"}, sess.Answers)
}
