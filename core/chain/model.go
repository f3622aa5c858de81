package chain

import "fmt"

// Field limits enforced by the dashboard; the engine validates them again
// when assembling graphs so a corrupted row cannot produce oversized sends.
const (
	MaxNameLen    = 64
	MaxMessageLen = 3000
	MaxButtonLen  = 64
)

// Chain is a configured multi-step conversational flow owned by a bot.
// The engine only reads chains; the dashboard creates and edits them.
type Chain struct {
	ID          int64
	BotID       int64
	Name        string
	FirstStepID int64 // 0 = no root step configured yet
}

// Step is one node in a chain's graph. It carries a message and is either
// terminal, button-driven, text-input-driven, or a pass-through link.
type Step struct {
	ID         int64
	ChainID    int64
	Name       string
	Message    string
	NextStepID int64 // 0 = none; used by text-input and pass-through steps
	TextInput  bool
	Buttons    []Button // ordered as configured
}

// Button is a labeled choice on a step. CallbackID is the opaque token a
// press carries back; it stays stable across dashboard edits so in-flight
// sessions are not invalidated.
type Button struct {
	ID         int64
	StepID     int64
	Text       string
	CallbackID string
	NextStepID int64 // 0 = leaf awaiting configuration
}

// StepKind classifies a step by which inputs it accepts.
type StepKind int

const (
	// StepTerminal accepts no input; reaching it ends the chain.
	StepTerminal StepKind = iota
	// StepButtons waits for one of the step's button callbacks.
	StepButtons
	// StepTextInput waits for free-form text.
	StepTextInput
	// StepPassThrough advances on any input without validation.
	StepPassThrough
)

func (k StepKind) String() string {
	switch k {
	case StepButtons:
		return "buttons"
	case StepTextInput:
		return "text_input"
	case StepPassThrough:
		return "pass_through"
	default:
		return "terminal"
	}
}

// Kind derives the step's classification from its configuration.
// Buttons win over next_step: a step with buttons ignores its next_step link.
func (s *Step) Kind() StepKind {
	switch {
	case s.TextInput:
		return StepTextInput
	case len(s.Buttons) > 0:
		return StepButtons
	case s.NextStepID != 0:
		return StepPassThrough
	default:
		return StepTerminal
	}
}

// ButtonByCallback resolves a callback identifier against this step's buttons.
func (s *Step) ButtonByCallback(callbackID string) (*Button, bool) {
	for i := range s.Buttons {
		if s.Buttons[i].CallbackID == callbackID {
			return &s.Buttons[i], true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of a single step.
func (s *Step) Validate() error {
	if s.TextInput && len(s.Buttons) > 0 {
		return fmt.Errorf("step %d: text_input step cannot have buttons", s.ID)
	}
	if len(s.Name) > MaxNameLen {
		return fmt.Errorf("step %d: name exceeds %d chars", s.ID, MaxNameLen)
	}
	if len(s.Message) > MaxMessageLen {
		return fmt.Errorf("step %d: message exceeds %d chars", s.ID, MaxMessageLen)
	}
	seen := make(map[string]struct{}, len(s.Buttons))
	for _, b := range s.Buttons {
		if len(b.Text) > MaxButtonLen {
			return fmt.Errorf("step %d: button %d text exceeds %d chars", s.ID, b.ID, MaxButtonLen)
		}
		if b.CallbackID == "" {
			return fmt.Errorf("step %d: button %d has empty callback id", s.ID, b.ID)
		}
		if _, dup := seen[b.CallbackID]; dup {
			return fmt.Errorf("step %d: duplicate callback id %q", s.ID, b.CallbackID)
		}
		seen[b.CallbackID] = struct{}{}
	}
	return nil
}
