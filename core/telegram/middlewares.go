package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/adboard/core/config"
	"github.com/m3rciful/adboard/core/metrics"
	"github.com/m3rciful/adboard/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions carries the optional collaborators of the default chain.
type MiddlewareOptions struct {
	OnLimited tele.HandlerFunc
	Limiter   middleware.Limiter
	Metrics   *metrics.Metrics
}

// DefaultMiddlewares builds the shared middleware chain: recover, logger, metrics, then rate limit.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware(opts.Metrics)},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
					Limiter:   opts.Limiter,
					Metrics:   opts.Metrics,
				}),
			})
		}
	}

	return mws
}
