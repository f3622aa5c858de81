package keyboard

import (
	"testing"

	"github.com/botfactory/chainbot/core/chain"
)

func TestStepButtonsRowWrapping(t *testing.T) {
	markup := StepButtons([]chain.KeyboardButton{
		{Text: "A", CallbackID: "cb-a"},
		{Text: "B", CallbackID: "cb-b"},
		{Text: "C", CallbackID: "cb-c"},
	})

	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(markup.InlineKeyboard))
	}
	if len(markup.InlineKeyboard[0]) != 2 || len(markup.InlineKeyboard[1]) != 1 {
		t.Fatalf("row sizes = %d, %d", len(markup.InlineKeyboard[0]), len(markup.InlineKeyboard[1]))
	}

	btn := markup.InlineKeyboard[0][0]
	if btn.Text != "A" {
		t.Fatalf("text = %q", btn.Text)
	}
	if btn.Unique != StepUnique || btn.Data != "cb-a" {
		t.Fatalf("unique = %q, data = %q", btn.Unique, btn.Data)
	}
}

func TestForReplySelection(t *testing.T) {
	inline := ForReply(chain.Reply{Keyboard: []chain.KeyboardButton{{Text: "A", CallbackID: "cb-a"}}})
	if inline == nil || len(inline.InlineKeyboard) == 0 {
		t.Fatal("expected inline keyboard")
	}

	menu := ForReply(chain.Reply{Menu: []string{"Survey", "About"}})
	if menu == nil || len(menu.ReplyKeyboard) != 2 {
		t.Fatalf("menu markup = %+v", menu)
	}
	if !menu.ResizeKeyboard {
		t.Fatal("menu keyboard must resize")
	}

	force := ForReply(chain.Reply{AwaitText: true})
	if force == nil || !force.ForceReply {
		t.Fatalf("force markup = %+v", force)
	}

	if ForReply(chain.Reply{Text: "plain"}) != nil {
		t.Fatal("plain reply must carry no markup")
	}
}
