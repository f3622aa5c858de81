package keyboard

import (
	"github.com/botfactory/chainbot/core/chain"

	tele "gopkg.in/telebot.v4"
)

// StepUnique is the callback endpoint all step buttons share. The button's
// stable callback id travels in the payload part of the callback data.
const StepUnique = "step"

// buttonsPerRow controls how step buttons are wrapped into keyboard rows.
const buttonsPerRow = 2

// ForceReply returns a markup that forces the user to reply. Used on
// text-input prompts so mobile clients open the input field right away.
func ForceReply() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true}
}

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// MenuButtons builds the persistent reply keyboard from main-menu labels,
// one label per row.
func MenuButtons(labels []string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := make([]tele.Row, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, markup.Row(markup.Text(label)))
	}
	markup.Reply(rows...)
	return markup
}

// StepButtons builds the inline keyboard for a step's buttons.
func StepButtons(buttons []chain.KeyboardButton) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var inline [][]tele.InlineButton
	var row []tele.InlineButton
	for _, b := range buttons {
		btn := markup.Data(b.Text, StepUnique, b.CallbackID)
		row = append(row, *btn.Inline())
		if len(row) == buttonsPerRow {
			inline = append(inline, row)
			row = nil
		}
	}
	if len(row) > 0 {
		inline = append(inline, row)
	}
	markup.InlineKeyboard = inline
	return markup
}

// ForReply selects the markup for an outbound engine reply: inline buttons
// when the target step has them, the menu keyboard on welcome screens, a
// forced reply on text prompts, nil otherwise.
func ForReply(r chain.Reply) *tele.ReplyMarkup {
	switch {
	case len(r.Keyboard) > 0:
		return StepButtons(r.Keyboard)
	case len(r.Menu) > 0:
		return MenuButtons(r.Menu)
	case r.AwaitText:
		return ForceReply()
	default:
		return nil
	}
}
