package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		data    string
		unique  string
		payload string
	}{
		{"\fstep|cb-7f3a", "step", "cb-7f3a"},
		{"\fstep", "step", ""},
		{`\fstep|cb-2`, "step", "cb-2"},
		{`step|cb-1`, "step", "cb-1"},
		{"\fstep|with|pipes", "step", "with|pipes"},
		{``, "", ""},
	}
	for _, tc := range cases {
		unique, payload := ParseCallbackData(&tele.Callback{Data: tc.data})
		if unique != tc.unique || payload != tc.payload {
			t.Errorf("ParseCallbackData(%q) = (%q, %q), want (%q, %q)",
				tc.data, unique, payload, tc.unique, tc.payload)
		}
	}
}

func TestParseCallbackDataNil(t *testing.T) {
	unique, payload := ParseCallbackData(nil)
	if unique != "" || payload != "" {
		t.Fatalf("nil callback = (%q, %q)", unique, payload)
	}
}
