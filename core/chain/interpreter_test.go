package chain

import "testing"

func TestInterpretTextInput(t *testing.T) {
	step := &Step{ID: 2, Name: "fav_color", TextInput: true, NextStepID: 3}

	tr := Interpret(step, Update{Kind: UpdateText, Payload: "red"})
	if !tr.Matched || !tr.HasAnswer {
		t.Fatalf("transition = %+v", tr)
	}
	if tr.Answer != "red" || tr.TargetStepID != 3 {
		t.Fatalf("transition = %+v", tr)
	}

	// A button press at a text prompt fits nothing.
	tr = Interpret(step, Update{Kind: UpdateCallback, Payload: "cb-1"})
	if tr.Matched {
		t.Fatalf("callback matched text-input step: %+v", tr)
	}
}

func TestInterpretTextInputTerminal(t *testing.T) {
	step := &Step{ID: 2, Name: "feedback", TextInput: true}
	tr := Interpret(step, Update{Kind: UpdateText, Payload: "thanks"})
	if !tr.Matched || tr.TargetStepID != 0 {
		t.Fatalf("transition = %+v", tr)
	}
}

func TestInterpretButtons(t *testing.T) {
	step := &Step{ID: 1, Name: "pick", Buttons: []Button{
		{ID: 10, Text: "Red", CallbackID: "cb-red", NextStepID: 2},
		{ID: 11, Text: "Blue", CallbackID: "cb-blue"},
	}}

	tr := Interpret(step, Update{Kind: UpdateCallback, Payload: "cb-red"})
	if !tr.Matched || tr.Answer != "Red" || tr.TargetStepID != 2 {
		t.Fatalf("transition = %+v", tr)
	}

	// A button without a target exits the chain but still records.
	tr = Interpret(step, Update{Kind: UpdateCallback, Payload: "cb-blue"})
	if !tr.Matched || !tr.HasAnswer || tr.TargetStepID != 0 {
		t.Fatalf("transition = %+v", tr)
	}

	if tr := Interpret(step, Update{Kind: UpdateCallback, Payload: "cb-gone"}); tr.Matched {
		t.Fatalf("unknown callback matched: %+v", tr)
	}
	if tr := Interpret(step, Update{Kind: UpdateText, Payload: "Red"}); tr.Matched {
		t.Fatalf("text matched button step: %+v", tr)
	}
}

func TestInterpretPassThrough(t *testing.T) {
	step := &Step{ID: 4, Name: "info", NextStepID: 5}

	for _, kind := range []UpdateKind{UpdateText, UpdateCallback} {
		tr := Interpret(step, Update{Kind: kind, Payload: "anything"})
		if !tr.Matched || tr.TargetStepID != 5 {
			t.Fatalf("kind %s: transition = %+v", kind, tr)
		}
		if tr.HasAnswer {
			t.Fatalf("pass-through must not record an answer: %+v", tr)
		}
	}
}

func TestInterpretTerminal(t *testing.T) {
	step := &Step{ID: 9, Name: "done"}
	if tr := Interpret(step, Update{Kind: UpdateText, Payload: "hi"}); tr.Matched {
		t.Fatalf("terminal step matched: %+v", tr)
	}
	if tr := Interpret(nil, Update{Kind: UpdateText}); tr.Matched {
		t.Fatalf("nil step matched: %+v", tr)
	}
}

func TestStepKindPrecedence(t *testing.T) {
	cases := []struct {
		name string
		step Step
		want StepKind
	}{
		{"terminal", Step{}, StepTerminal},
		{"buttons", Step{Buttons: []Button{{}}}, StepButtons},
		{"text_input", Step{TextInput: true}, StepTextInput},
		{"text_input_wins", Step{TextInput: true, NextStepID: 3}, StepTextInput},
		{"buttons_win_over_next", Step{Buttons: []Button{{}}, NextStepID: 3}, StepButtons},
		{"pass_through", Step{NextStepID: 3}, StepPassThrough},
	}
	for _, tc := range cases {
		if got := tc.step.Kind(); got != tc.want {
			t.Errorf("%s: kind = %s, want %s", tc.name, got, tc.want)
		}
	}
}
