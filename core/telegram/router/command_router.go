package router

import (
	"log/slog"

	"github.com/m3rciful/adboard/core/logger"
	"github.com/m3rciful/adboard/core/metrics"
	tg "github.com/m3rciful/adboard/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Metrics *metrics.Metrics
}

// CommandRoutes binds every registered slash command to a telebot endpoint.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	sum := summary{metrics: opts.Metrics}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := normalizeHandlerName(cmd)
		h := def.Handler
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler: func(c tele.Context) error {
				return sum.run(c, name, func() error { return h(c) })
			},
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("count", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
