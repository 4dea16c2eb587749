package router

import (
	"time"

	tg "github.com/m3rciful/bookmarket/core/telegram"
	"github.com/m3rciful/bookmarket/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions controls routing of plain (non-command) messages.
type MessageOptions struct {
	// Handle receives text, photo and document messages. When nil every
	// message is logged as skipped.
	Handle tele.HandlerFunc
}

var messageEndpoints = []struct {
	endpoint string
	name     string
}{
	{tele.OnText, "message.text"},
	{tele.OnPhoto, "message.photo"},
	{tele.OnDocument, "message.document"},
}

// MessageRoutes builds one route per message kind, all funnelled into a single handler.
func MessageRoutes(opts MessageOptions) []tg.Route {
	routes := make([]tg.Route, 0, len(messageEndpoints))
	for _, ep := range messageEndpoints {
		name := ep.name
		handler := func(c tele.Context) error {
			start := time.Now()
			if opts.Handle != nil {
				return handleWithSummary(c, name, start, "", "", func() error {
					return opts.Handle(c)
				})
			}
			logHandlerSummary(c, name, start, "skip", "skip", nil)
			return nil
		}
		routes = append(routes, tg.Route{
			Endpoint: ep.endpoint,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		})
	}
	return routes
}
