package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline builds an inline keyboard row by row.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a row of buttons.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	if len(btn) == 0 {
		return i
	}
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Columns appends buttons laid out n per row.
func (i *Inline) Columns(n int, btns []tele.Btn) *Inline {
	if n <= 0 {
		n = 1
	}
	for len(btns) > 0 {
		k := n
		if k > len(btns) {
			k = len(btns)
		}
		i.Row(btns[:k]...)
		btns = btns[k:]
	}
	return i
}

// Empty reports whether no button was added.
func (i *Inline) Empty() bool { return len(i.rows) == 0 }

// Markup returns the underlying reply markup, or nil when empty so callers
// can pass it straight into send options.
func (i *Inline) Markup() *tele.ReplyMarkup {
	if i.Empty() {
		return nil
	}
	return i.rm
}

// Btn creates a callback button. data is sent as-is; build it with Data.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: TruncRunes(text, 40), Data: data}
}
