package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/bookmarket/core/logger"
	tg "github.com/m3rciful/bookmarket/core/telegram"
	"github.com/m3rciful/bookmarket/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	// Authorize gates commands marked AdminOnly. Nil leaves them open.
	Authorize middleware.AuthorizeFunc
	OnReject  tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	restricted := middleware.RestrictedMiddleware(middleware.AccessOptions{
		Authorize: opts.Authorize,
		OnReject:  opts.OnReject,
	})

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := normalizeHandlerName(cmd)
		inner := def.Handler
		if def.AdminOnly {
			inner = restricted(inner)
		}
		h := func(c tele.Context) error {
			return handleWithSummary(c, "command."+name, time.Now(), "", "", func() error {
				return inner(c)
			})
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}

	logger.Info(context.Background(), logger.CompTGWire, "complete",
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
