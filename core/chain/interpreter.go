package chain

// Transition is the interpreter's verdict on an inbound update. Matched
// false means the update fits none of the configured transitions from the
// current step; the caller answers with the bot's default reply and leaves
// the session untouched. Unmatched input is a normal value here, not an
// error path.
type Transition struct {
	Matched      bool
	TargetStepID int64 // 0 = exit the chain (idle)
	Answer       string
	HasAnswer    bool
}

// Interpret maps an inbound update onto a transition from the given step.
//
// Text-input steps accept any text as the answer and reject callbacks.
// Button steps require a callback matching one of their buttons. A
// pass-through step (next_step only) advances on any input, which lets a
// single press run through successive steps without waiting for new input.
// Terminal steps accept nothing; a session pointing at one only happens
// after dashboard edits and is answered with the default reply.
func Interpret(step *Step, upd Update) Transition {
	if step == nil {
		return Transition{}
	}
	switch step.Kind() {
	case StepTextInput:
		if upd.Kind != UpdateText {
			return Transition{}
		}
		return Transition{
			Matched:      true,
			TargetStepID: step.NextStepID,
			Answer:       upd.Payload,
			HasAnswer:    true,
		}
	case StepButtons:
		if upd.Kind != UpdateCallback {
			return Transition{}
		}
		btn, ok := step.ButtonByCallback(upd.Payload)
		if !ok {
			return Transition{}
		}
		return Transition{
			Matched:      true,
			TargetStepID: btn.NextStepID,
			Answer:       btn.Text,
			HasAnswer:    true,
		}
	case StepPassThrough:
		return Transition{Matched: true, TargetStepID: step.NextStepID}
	default:
		return Transition{}
	}
}
