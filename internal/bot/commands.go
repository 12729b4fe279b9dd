package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	tg "github.com/nusakov/remontbot/core/telegram"
	"github.com/nusakov/remontbot/core/telegram/commands"
	"github.com/nusakov/remontbot/core/telegram/helpers"
)

const helpText = `Бот для фотоотчетов о выполненных работах.

/start — начать новый отчет
/tasks — список незавершенных задач
/cancel — отменить текущую сессию
/help — эта справка`

// RegisterCommands adds the bot's commands to the registry.
func (b *Bot) RegisterCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     b.handleStart,
		Description: "Начать новый отчет",
	})
	reg.RegisterCommand("/tasks", commands.Command{
		Handler:     b.handleTasks,
		Description: "Незавершенные задачи",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     b.handleCancel,
		Description: "Отменить текущую сессию",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     b.handleHelp,
		Description: "Справка",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     b.handleStats,
		Description: "Счетчики задач",
		AdminOnly:   true,
		Hidden:      true,
	})
}

func (b *Bot) handleStart(c tele.Context) error {
	d := b.draft(c)
	return b.apply(c, d, b.machine.Start(flowContext(c), d))
}

func (b *Bot) handleTasks(c tele.Context) error {
	d := b.draft(c)
	return b.apply(c, d, b.machine.Tasks(flowContext(c), d))
}

func (b *Bot) handleCancel(c tele.Context) error {
	d := b.draft(c)
	return b.apply(c, d, b.machine.Cancel(d))
}

func (b *Bot) handleHelp(c tele.Context) error {
	return helpers.SendText(c, helpText)
}

func (b *Bot) handleStats(c tele.Context) error {
	pending, total, err := b.store.Counts(flowContext(c))
	if err != nil {
		return helpers.SendText(c, "Не удалось получить счетчики задач.")
	}
	return helpers.SendText(c, fmt.Sprintf(
		"Задач всего: %d\nНе выполнено: %d\nВыполнено: %d",
		total, pending, total-pending,
	))
}
