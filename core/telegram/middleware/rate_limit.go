package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/adboard/core/logger"
	"github.com/m3rciful/adboard/core/metrics"
	tghelpers "github.com/m3rciful/adboard/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Limiter decides whether a user may be served now given the minimum interval between updates.
type Limiter interface {
	Allow(ctx context.Context, userID int64, interval time.Duration) (bool, error)
}

// MemoryLimiter tracks the last accepted update per user in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time
	now      func() time.Time
}

// NewMemoryLimiter returns an empty in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{lastSeen: make(map[int64]time.Time), now: time.Now}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, userID int64, interval time.Duration) (bool, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastSeen[userID]; ok && now.Sub(last) < interval {
		return false, nil
	}
	l.lastSeen[userID] = now
	return true, nil
}

// RedisLimiter shares limiter state between bot replicas through SET NX PX.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter connects to the given redis:// URL and verifies it with a ping.
func NewRedisLimiter(ctx context.Context, rawURL string) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rate_limit.redis_url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLimiter{client: client, prefix: "adboard:ratelimit:"}, nil
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, userID int64, interval time.Duration) (bool, error) {
	key := l.prefix + strconv.FormatInt(userID, 10)
	return l.client.SetNX(ctx, key, 1, interval).Result()
}

// Ping reports whether redis is reachable.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the redis connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Limiter defaults to a MemoryLimiter.
	Limiter Limiter
	Metrics *metrics.Metrics
}

// RateLimitMiddleware enforces a minimum interval between updates from the same user.
// Limiter errors fail open so a backend outage never blocks users.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewMemoryLimiter()
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}

			ctx := tghelpers.BuildContext(c)
			ok, err := limiter.Allow(ctx, user.ID, opts.Interval)
			if err != nil {
				logger.TG.LogAttrs(ctx, slog.LevelWarn, "rate limit backend failed",
					slog.String("event", "tg.rate_limit"),
					slog.String("err", err.Error()),
				)
				return next(c)
			}
			if ok {
				return next(c)
			}

			opts.Metrics.ObserveRateLimited()
			logger.TG.LogAttrs(ctx, slog.LevelWarn, "rate limit",
				slog.String("event", "tg.rate_limit"),
				slog.String("outcome", "rate_limited"),
				slog.Bool("rate_limited", true),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
