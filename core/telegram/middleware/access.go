package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/bookmarket/core/logger"
	tghelpers "github.com/m3rciful/bookmarket/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AuthorizeFunc decides whether a user may run a privileged handler.
type AuthorizeFunc func(ctx context.Context, userID int64) (bool, error)

// AccessOptions defines how privileged-command checks behave.
type AccessOptions struct {
	Authorize AuthorizeFunc
	OnReject  tele.HandlerFunc
}

// RestrictedMiddleware lets a sender through only when Authorize approves it.
// Lookup errors count as a denial.
func RestrictedMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if opts.Authorize == nil {
			return next
		}
		return func(c tele.Context) error {
			user := c.Sender()
			ctx := tghelpers.BuildContext(c)
			if user != nil {
				ok, err := opts.Authorize(ctx, user.ID)
				if err == nil && ok {
					return next(c)
				}
				attrs := []slog.Attr{slog.String("status", "denied")}
				if err != nil {
					attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
				}
				logger.Warn(ctx, logger.CompTG, "access.denied", attrs...)
			}
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
