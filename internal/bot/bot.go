// Package bot adapts Telegram updates to conversation flow events and flow
// replies back to outbound messages. All conversation logic lives in
// internal/flow; this package is deliberately thin.
package bot

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/nusakov/remontbot/core/telegram/helpers"
	"github.com/nusakov/remontbot/core/telegram/keyboard"
	"github.com/nusakov/remontbot/core/telegram/state"
	"github.com/nusakov/remontbot/internal/flow"
	"github.com/nusakov/remontbot/internal/report"
)

const draftKey = "draft"

// Bot wires the flow machine to the Telegram transport.
type Bot struct {
	machine *flow.Machine
	states  state.Manager
	store   *report.Store
}

// New builds the transport glue around a flow machine.
func New(machine *flow.Machine, states state.Manager, store *report.Store) *Bot {
	return &Bot{machine: machine, states: states, store: store}
}

// States exposes the FSM manager for router wiring.
func (b *Bot) States() state.Manager {
	return b.states
}

// RegisterStates binds the shared FSM handler to every conversation state.
func (b *Bot) RegisterStates() {
	for _, st := range flow.States() {
		state.RegisterHandler(st, b.handleUpdate)
	}
}

// handleUpdate is the single FSM entry point: it classifies the update as a
// photo or text event and forwards it to the machine.
func (b *Bot) handleUpdate(c tele.Context) error {
	d := b.draft(c)
	ctx := helpers.BuildContext(c)

	if msg := c.Message(); msg != nil && msg.Photo != nil {
		photo := msg.Photo
		save := func(path string) error {
			return c.Bot().Download(&photo.File, path)
		}
		return b.apply(c, d, b.machine.Photo(ctx, d, save))
	}
	return b.apply(c, d, b.machine.Text(ctx, d, strings.TrimSpace(c.Text())))
}

// draft returns the user's live session, creating one on first contact.
func (b *Bot) draft(c tele.Context) *flow.Draft {
	userID := c.Sender().ID
	if v, ok := b.states.GetTemp(userID, draftKey); ok {
		if d, ok := v.(*flow.Draft); ok {
			return d
		}
	}
	d := &flow.Draft{UserID: userID, State: b.states.GetState(userID)}
	b.states.SetTemp(userID, draftKey, d)
	return d
}

// apply persists the draft's state transition and delivers the replies.
func (b *Bot) apply(c tele.Context, d *flow.Draft, replies []flow.Reply) error {
	userID := c.Sender().ID
	if d.State == "" || d.State == state.StateIdle {
		b.states.Clear(userID)
	} else {
		b.states.SetTemp(userID, draftKey, d)
		b.states.SetState(userID, d.State)
	}

	for _, r := range replies {
		if err := b.send(c, r); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) send(c tele.Context, r flow.Reply) error {
	if r.Document != nil {
		return helpers.SendDocument(c, r.Document.Path, r.Document.FileName, r.Document.Caption)
	}

	markup := buildMarkup(r)
	if r.Edit && c.Callback() != nil {
		if markup != nil {
			return c.Edit(r.Text, markup)
		}
		return c.Edit(r.Text)
	}
	if markup != nil {
		return helpers.SendText(c, r.Text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return helpers.SendText(c, r.Text)
}

func buildMarkup(r flow.Reply) *tele.ReplyMarkup {
	if len(r.Keyboard) > 0 {
		markup := keyboard.ReplyButtons(r.Keyboard...)
		markup.OneTimeKeyboard = true
		return markup
	}
	if len(r.Inline) > 0 {
		rows := make([][]keyboard.InlineBtn, len(r.Inline))
		for i, row := range r.Inline {
			btns := make([]keyboard.InlineBtn, len(row))
			for j, btn := range row {
				btns[j] = keyboard.InlineBtn{Text: btn.Text, Unique: btn.Unique, Data: btn.Data}
			}
			rows[i] = btns
		}
		return keyboard.InlineButtonsRows(rows...)
	}
	return nil
}

func flowContext(c tele.Context) context.Context {
	return helpers.BuildContext(c)
}
