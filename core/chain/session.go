package chain

import (
	"context"
	"time"
)

// Session is a user's cursor inside a chain plus the answers collected so
// far. StepID == 0 means the user is idle (not inside any chain). Sessions
// are never deleted by the engine; they back the results view and only go
// away when their chain is deleted.
type Session struct {
	BotID     int64             `json:"bot_id"`
	UserID    int64             `json:"user_id"`
	ChainID   int64             `json:"chain_id"`
	StepID    int64             `json:"step_id"`
	Answers   map[string]string `json:"answers"`
	User      User              `json:"user"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Idle reports whether the session is outside any chain.
func (s *Session) Idle() bool { return s == nil || s.StepID == 0 }

// RecordAnswer stores the answer given at a step, keyed by step name.
// Revisiting a step through a cycle overwrites the previous answer instead
// of accumulating duplicates.
func (s *Session) RecordAnswer(stepName, answer string) {
	if s.Answers == nil {
		s.Answers = make(map[string]string, 4)
	}
	s.Answers[stepName] = answer
	s.UpdatedAt = time.Now().UTC()
}

// Advance moves the cursor to the given step; 0 exits the chain.
func (s *Session) Advance(stepID int64) {
	s.StepID = stepID
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so stores can hand out sessions without
// sharing the answers map.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Answers != nil {
		cp.Answers = make(map[string]string, len(s.Answers))
		for k, v := range s.Answers {
			cp.Answers[k] = v
		}
	}
	return &cp
}

// SessionStore is the per-(bot, user) position tracker. Callers serialize
// access per user (see Engine), so implementations only need internal
// consistency, not per-session locking.
type SessionStore interface {
	// Get returns the session for the pair or ErrSessionNotFound.
	Get(ctx context.Context, botID, userID int64) (*Session, error)

	// GetOrCreate returns the existing session repositioned at the entry
	// step of the given chain, creating it with empty answers when absent.
	GetOrCreate(ctx context.Context, botID, userID int64, chainID, entryStepID int64) (*Session, error)

	// Save persists the session's current position, answers, and identity.
	Save(ctx context.Context, s *Session) error
}

// GraphStore is the read API over the dashboard-owned chain configuration.
type GraphStore interface {
	// ChainRoot resolves a chain's first step. Returns ErrChainNotFound or
	// ErrStepNotFound when the chain or its root is missing.
	ChainRoot(ctx context.Context, chainID int64) (*Step, error)

	// StepByID resolves a step with its buttons, or ErrStepNotFound.
	StepByID(ctx context.Context, stepID int64) (*Step, error)

	// Graph loads a chain's whole step table for visualization.
	Graph(ctx context.Context, chainID int64) (*Graph, error)
}

// MenuButton is a main-menu entry. A button either starts a chain
// (ChainID != 0), answers with a static text, or does nothing yet.
type MenuButton struct {
	ID        int64
	BotID     int64
	Text      string
	ReplyText string
	ChainID   int64
}

// Menu is a bot's main menu: welcome message plus entry buttons.
type Menu struct {
	BotID          int64
	WelcomeMessage string
	Buttons        []MenuButton
}

// MenuStore reads the dashboard-owned main menu configuration.
type MenuStore interface {
	// Menu returns the bot's menu or ErrMenuNotFound.
	Menu(ctx context.Context, botID int64) (*Menu, error)

	// ButtonByText resolves a menu entry by its label, the form a
	// reply-keyboard press arrives in. Returns ErrMenuButtonNotFound on miss.
	ButtonByText(ctx context.Context, botID int64, text string) (*MenuButton, error)
}
