package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/botfactory/chainbot/core/chain"
)

// MemoryGraphStore keeps chain graphs in process memory. It backs tests and
// the development session backend; production reads come from Postgres.
type MemoryGraphStore struct {
	mu     sync.RWMutex
	graphs map[int64]*chain.Graph
	steps  map[int64]*chain.Step
}

// NewMemoryGraphStore constructs an empty in-memory graph store.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{
		graphs: make(map[int64]*chain.Graph),
		steps:  make(map[int64]*chain.Step),
	}
}

// Put registers a graph, replacing any previous version of the same chain.
// Step ids are indexed globally; the dashboard keeps them unique across chains.
func (m *MemoryGraphStore) Put(g *chain.Graph) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.graphs[g.Chain().ID]; ok {
		for _, id := range old.StepIDs() {
			delete(m.steps, id)
		}
	}
	m.graphs[g.Chain().ID] = g
	for _, id := range g.StepIDs() {
		if s, ok := g.StepByID(id); ok {
			m.steps[id] = s
		}
	}
}

// Remove drops a chain and its step index entries.
func (m *MemoryGraphStore) Remove(chainID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.graphs[chainID]
	if !ok {
		return
	}
	for _, id := range g.StepIDs() {
		delete(m.steps, id)
	}
	delete(m.graphs, chainID)
}

// ChainRoot resolves the configured first step of a chain.
func (m *MemoryGraphStore) ChainRoot(_ context.Context, chainID int64) (*chain.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.graphs[chainID]
	if !ok {
		return nil, chain.ErrChainNotFound
	}
	root, ok := g.Root()
	if !ok {
		return nil, chain.ErrStepNotFound
	}
	return root, nil
}

// StepByID resolves a step across all registered chains.
func (m *MemoryGraphStore) StepByID(_ context.Context, stepID int64) (*chain.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.steps[stepID]
	if !ok {
		return nil, chain.ErrStepNotFound
	}
	return s, nil
}

// Graph returns the full graph of a chain.
func (m *MemoryGraphStore) Graph(_ context.Context, chainID int64) (*chain.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.graphs[chainID]
	if !ok {
		return nil, chain.ErrChainNotFound
	}
	return g, nil
}

type sessionKey struct {
	botID  int64
	userID int64
}

// MemorySessionStore keeps sessions in process memory. It implements both
// the session store and the result recorder, mirroring how the Postgres
// backend keeps position and answers on the same row.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*chain.Session
}

// NewMemorySessionStore constructs an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[sessionKey]*chain.Session),
	}
}

// Get returns a copy of the user's session.
func (m *MemorySessionStore) Get(_ context.Context, botID, userID int64) (*chain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionKey{botID, userID}]
	if !ok {
		return nil, chain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

// GetOrCreate returns the existing session repositioned on the given chain
// entry, or a fresh one. Answers from a previous run of the same chain are
// kept so revisits overwrite rather than fork.
func (m *MemorySessionStore) GetOrCreate(_ context.Context, botID, userID, chainID, entryStepID int64) (*chain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{botID, userID}
	s, ok := m.sessions[key]
	if !ok {
		s = &chain.Session{BotID: botID, UserID: userID}
		m.sessions[key] = s
	}
	s.ChainID = chainID
	s.Advance(entryStepID)
	return s.Clone(), nil
}

// Save stores a copy of the session.
func (m *MemorySessionStore) Save(_ context.Context, s *chain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionKey{s.BotID, s.UserID}] = s.Clone()
	return nil
}

// Record writes the answer onto the session's answer map and persists it.
func (m *MemorySessionStore) Record(_ context.Context, s *chain.Session, stepName, answer string) error {
	s.RecordAnswer(stepName, answer)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey{s.BotID, s.UserID}] = s.Clone()
	return nil
}

// ListResults returns per-user answer maps for a chain, most recent first.
func (m *MemorySessionStore) ListResults(_ context.Context, botID, chainID int64, page, perPage int) (*chain.ResultPage, error) {
	page, perPage = chain.NormalizePage(page, perPage)

	m.mu.RLock()
	matched := make([]*chain.Session, 0)
	for _, s := range m.sessions {
		if s.BotID == botID && s.ChainID == chainID && len(s.Answers) > 0 {
			matched = append(matched, s.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	items := make([]chain.Result, 0, end-start)
	for _, s := range matched[start:end] {
		items = append(items, chain.Result{
			User:            s.User,
			Answers:         s.Answers,
			LastInteraction: s.UpdatedAt,
		})
	}
	return &chain.ResultPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: chain.PageCount(total, perPage),
	}, nil
}

// MemoryMenuStore keeps main menus in process memory.
type MemoryMenuStore struct {
	mu    sync.RWMutex
	menus map[int64]*chain.Menu
}

// NewMemoryMenuStore constructs an empty in-memory menu store.
func NewMemoryMenuStore() *MemoryMenuStore {
	return &MemoryMenuStore{menus: make(map[int64]*chain.Menu)}
}

// Put registers a bot's main menu, replacing any previous one.
func (m *MemoryMenuStore) Put(botID int64, menu *chain.Menu) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menus[botID] = menu
}

// Menu returns the bot's main menu.
func (m *MemoryMenuStore) Menu(_ context.Context, botID int64) (*chain.Menu, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	menu, ok := m.menus[botID]
	if !ok {
		return nil, chain.ErrMenuNotFound
	}
	return menu, nil
}

// ButtonByText resolves a menu button by its visible label.
func (m *MemoryMenuStore) ButtonByText(_ context.Context, botID int64, text string) (*chain.MenuButton, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	menu, ok := m.menus[botID]
	if !ok {
		return nil, chain.ErrMenuNotFound
	}
	for i := range menu.Buttons {
		if menu.Buttons[i].Text == text {
			return &menu.Buttons[i], nil
		}
	}
	return nil, chain.ErrMenuButtonNotFound
}
