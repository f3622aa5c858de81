package chain

import "context"

// UpdateKind distinguishes the two inputs the engine understands.
type UpdateKind string

const (
	// UpdateText is a free-form text message.
	UpdateText UpdateKind = "text"
	// UpdateCallback is an inline button press carrying a callback id.
	UpdateCallback UpdateKind = "callback"
)

// User carries the end-user identity attached to an update. It is persisted
// on the session so results can be displayed with the user who produced them.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// Update is the normalized inbound event handed to the engine by the
// webhook ingress. Payload holds the callback id for UpdateCallback and the
// raw message text for UpdateText.
type Update struct {
	BotID   int64
	ChatID  int64
	From    User
	Kind    UpdateKind
	Payload string
}

// KeyboardButton is one inline keyboard entry on an outbound message.
type KeyboardButton struct {
	Text       string
	CallbackID string
}

// Reply is the outbound message produced by a transition. Keyboard carries
// the target step's inline buttons; Menu carries reply-keyboard labels used
// by the welcome screen; AwaitText marks a text-input prompt so the
// transport can force a reply.
type Reply struct {
	ChatID    int64
	Text      string
	Keyboard  []KeyboardButton
	Menu      []string
	AwaitText bool
}

// StepReply renders a step into the outbound message shown when the user
// arrives at it.
func StepReply(chatID int64, s *Step) Reply {
	r := Reply{ChatID: chatID, Text: s.Message, AwaitText: s.TextInput}
	for _, b := range s.Buttons {
		r.Keyboard = append(r.Keyboard, KeyboardButton{Text: b.Text, CallbackID: b.CallbackID})
	}
	return r
}

// Outbound delivers replies through the messaging transport. Delivery is
// best-effort from the engine's perspective: the session transition is
// already committed when Send is called, and a failed send is logged but
// never rolled back.
type Outbound interface {
	Send(ctx context.Context, r Reply) error
}

// OutboundFunc adapts a function to the Outbound interface.
type OutboundFunc func(ctx context.Context, r Reply) error

// Send executes the underlying function.
func (f OutboundFunc) Send(ctx context.Context, r Reply) error { return f(ctx, r) }
