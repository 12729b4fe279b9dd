package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/nusakov/remontbot/core/telegram/helpers"
	"github.com/nusakov/remontbot/core/telegram/ui"
)

const msgNoSession = "Нет активной сессии. Отправьте /start, чтобы начать новый отчет."

var _ ui.FallbackProvider = (*Bot)(nil)

// UnknownText handles text received outside any conversation.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, msgNoSession)
	}
}

// UnknownPhoto handles photos received outside any conversation.
func (b *Bot) UnknownPhoto() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, msgNoSession)
	}
}

// UnknownDocument handles stray document uploads.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, "Бот принимает только фотографии.")
	}
}

// UnknownCallback answers taps on stale inline buttons.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "Кнопка устарела. Отправьте /start."})
	}
}
