package middleware

import (
	"github.com/nusakov/remontbot/core/logger"
	tghelpers "github.com/nusakov/remontbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// StateGetter is the minimal interface required from an FSM manager.
// The state identifier is compared by its string form so this package
// does not depend on the state package's concrete type.
type StateGetter interface {
	StateOf(userID int64) string
}

// State returns a middleware that runs the handler only when the user is in
// one of the expected FSM states. Updates arriving in any other state are
// silently dropped after a debug log line.
func State(mgr StateGetter, expected ...string) tele.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(expected))
	for _, st := range expected {
		allowed[st] = struct{}{}
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			userID := c.Sender().ID
			current := mgr.StateOf(userID)
			ctx := tghelpers.BuildContext(c)
			if _, ok := allowed[current]; ok {
				logger.TG.LogAttrs(ctx, slog.LevelDebug, "fsm.match",
					slog.Int64("user_id", userID),
					slog.String("state", current),
					slog.String("rid", logger.RIDFrom(ctx)),
				)
				return next(c)
			}
			logger.TG.LogAttrs(ctx, slog.LevelDebug, "fsm.skip",
				slog.Int64("user_id", userID),
				slog.String("state", current),
				slog.String("rid", logger.RIDFrom(ctx)),
			)
			// Ignore the update if the user is in a different state
			return nil
		}
	}
}
