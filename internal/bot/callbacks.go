package bot

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/nusakov/remontbot/core/telegram"
	"github.com/nusakov/remontbot/core/telegram/callbacks"
	"github.com/nusakov/remontbot/core/telegram/helpers"
	"github.com/nusakov/remontbot/core/telegram/middleware"
	"github.com/nusakov/remontbot/internal/flow"
)

// RegisterCallbacks adds the inline-button handlers, each guarded by the
// state it belongs to.
func (b *Bot) RegisterCallbacks(reg *tg.Registry) {
	confirmGuard := middleware.State(b.states, string(flow.StateConfirmingAddress))
	pickGuard := middleware.State(b.states, string(flow.StateAwaitingTaskPick))

	_ = reg.RegisterCallback(flow.CallbackConfirmAddress, confirmGuard(b.handleAddressConfirm))
	_ = reg.RegisterCallback(flow.CallbackTaskPick, pickGuard(b.handleTaskPick))
	_ = reg.RegisterCallback(flow.CallbackTaskPage, pickGuard(b.handleTaskPage))
}

func (b *Bot) handleAddressConfirm(c tele.Context) error {
	d := b.draft(c)
	confirmed := callbacks.CallbackPayload(c) == "correct"
	return b.apply(c, d, b.machine.ConfirmAddress(d, confirmed))
}

func (b *Bot) handleTaskPick(c tele.Context) error {
	d := b.draft(c)
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return helpers.SendText(c, "Некорректный выбор задачи.")
	}
	return b.apply(c, d, b.machine.PickTask(flowContext(c), d, id))
}

// handleTaskPage turns "prev_<n>" / "next_<n>" payloads into a page render.
func (b *Bot) handleTaskPage(c tele.Context) error {
	d := b.draft(c)
	payload := callbacks.CallbackPayload(c)

	dir, pageStr, ok := strings.Cut(payload, "_")
	if !ok {
		return nil
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return nil
	}
	switch dir {
	case "prev":
		page--
	case "next":
		page++
	default:
		return nil
	}
	return b.apply(c, d, b.machine.TasksPage(flowContext(c), d, page))
}
