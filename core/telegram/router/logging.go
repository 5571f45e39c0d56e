package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/adboard/core/logger"
	"github.com/m3rciful/adboard/core/metrics"
	tghelpers "github.com/m3rciful/adboard/core/telegram/helpers"
	"github.com/m3rciful/adboard/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary runs one routed handler and writes the handler.handled line for it.
type summary struct {
	metrics *metrics.Metrics
}

func (s summary) run(c tele.Context, handlerName string, fn func() error, extras ...slog.Attr) error {
	start := time.Now()
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	s.log(c, handlerName, start, "", err, extras...)
	return err
}

func (s summary) log(c tele.Context, handlerName string, start time.Time, statusOverride string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	msgs, kb := middleware.GetCounters(c)

	status := statusOverride
	if status == "" {
		status = logger.Status(err)
	}
	took := time.Since(start)
	s.metrics.ObserveHandler(handlerName, status, took)

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("outcome", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", DeriveErrorCode(err)),
		)
	} else {
		attrs = append(attrs, slog.String("outcome", "ok"))
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// DeriveErrorCode returns the Code() of the first error in the chain that has one,
// otherwise the upper-cased type name of err.
func DeriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
