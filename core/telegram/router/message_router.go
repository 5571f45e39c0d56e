package router

import (
	"time"

	"github.com/m3rciful/adboard/core/metrics"
	tg "github.com/m3rciful/adboard/core/telegram"
	tghelpers "github.com/m3rciful/adboard/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation engine consulted before any other text or photo routing.
type FSM interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
	HandlePhoto(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and photo updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownPhoto tele.HandlerFunc
	Metrics      *metrics.Metrics
}

// TextRoutes builds the OnText and OnPhoto handlers.
// Text goes to the FSM while a session is active, then to command aliases, then to fallbacks.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	sum := summary{metrics: opts.Metrics}

	textHandler := func(c tele.Context) error {
		if fsm != nil && fsm.InProgress(tghelpers.SenderID(c)) {
			return sum.run(c, "fsm", func() error { return fsm.HandleText(c) })
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return sum.run(c, normalizeHandlerName(key), func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return sum.run(c, "fallback", func() error { return fb(c) })
			}
		}

		if opts.UnknownText != nil {
			return sum.run(c, "unknown_text", func() error { return opts.UnknownText(c) })
		}
		sum.log(c, "unknown_text", time.Now(), "skip", nil)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		if fsm != nil && fsm.InProgress(tghelpers.SenderID(c)) {
			return sum.run(c, "fsm_photo", func() error { return fsm.HandlePhoto(c) })
		}
		if opts.UnknownPhoto != nil {
			return sum.run(c, "unexpected_photo", func() error { return opts.UnknownPhoto(c) })
		}
		sum.log(c, "unexpected_photo", time.Now(), "skip", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: textHandler},
		{Endpoint: tele.OnPhoto, Handler: photoHandler},
	}
}
