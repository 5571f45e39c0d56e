package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/adboard/core/logger"

	tele "gopkg.in/telebot.v4"
)

// DefaultTimeout bounds a single channel call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// API is the subset of *tele.Bot the publisher uses.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Runner executes one outbound call; *sender.Dispatcher satisfies it.
type Runner interface {
	Do(ctx context.Context, action, endpoint string, retry bool, run func() error) error
}

// Options configures the Telegram publisher.
type Options struct {
	API    API
	ChatID int64
	// Runner is optional; calls run inline when nil.
	Runner   Runner
	Timeout  time.Duration
	Observer Observer
}

// Telegram publishes posts to a channel through the Bot API.
type Telegram struct {
	api      API
	chat     tele.ChatID
	runner   Runner
	timeout  time.Duration
	observer Observer
}

var _ Publisher = (*Telegram)(nil)

// NewTelegram validates opts and returns a publisher bound to one channel.
func NewTelegram(opts Options) (*Telegram, error) {
	if opts.API == nil {
		return nil, errors.New("channel: nil api")
	}
	if opts.ChatID == 0 {
		return nil, errors.New("channel: chat id is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Telegram{
		api:      opts.API,
		chat:     tele.ChatID(opts.ChatID),
		runner:   opts.Runner,
		timeout:  opts.Timeout,
		observer: opts.Observer,
	}, nil
}

// Publish sends a photo post when photo is set and a text post otherwise.
// The call is never retried: a lost response must not produce a second post.
func (t *Telegram) Publish(ctx context.Context, photo, caption string) (string, error) {
	start := time.Now()
	var what interface{} = caption
	endpoint := "sendMessage"
	if photo != "" {
		what = &tele.Photo{File: tele.File{FileID: photo}, Caption: caption}
		endpoint = "sendPhoto"
	}

	var msg *tele.Message
	err := t.run(ctx, "channel.publish", endpoint, false, func() error {
		m, err := t.api.Send(t.chat, what)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err == nil && msg == nil {
		err = errors.New("empty response")
	}
	observe(t.observer, "publish", err)
	if err != nil {
		logger.LogEvent(ctx, logger.CHAN, slog.LevelError, "publish.fail",
			slog.String("status", "fail"),
			slog.String("err", logger.Sanitize(err.Error())),
			slog.Duration("duration", logger.Took(start)),
		)
		return "", &PublishError{Err: err}
	}

	ref := strconv.Itoa(msg.ID)
	logger.LogEvent(ctx, logger.CHAN, slog.LevelInfo, "publish.ok",
		slog.String("status", "ok"),
		slog.String("post_ref", ref),
		slog.Bool("photo", photo != ""),
		slog.Duration("duration", logger.Took(start)),
	)
	return ref, nil
}

// Remove deletes the post. A post Telegram no longer knows yields a RemoveError wrapping ErrPostGone.
func (t *Telegram) Remove(ctx context.Context, ref string) error {
	start := time.Now()
	ref = strings.TrimSpace(ref)
	if _, err := strconv.Atoi(ref); err != nil {
		rerr := &RemoveError{Ref: ref, Err: fmt.Errorf("invalid post ref: %w", ErrPostGone)}
		observe(t.observer, "remove", rerr)
		return rerr
	}

	msg := tele.StoredMessage{MessageID: ref, ChatID: int64(t.chat)}
	err := t.run(ctx, "channel.remove", "deleteMessage", true, func() error {
		return t.api.Delete(msg)
	})
	if err != nil && isMissingMessage(err) {
		err = fmt.Errorf("%w: %v", ErrPostGone, err)
	}
	observe(t.observer, "remove", err)

	attrs := []slog.Attr{
		slog.String("post_ref", ref),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		level := slog.LevelError
		if IsPostGone(err) {
			level = slog.LevelWarn
		}
		attrs = append(attrs,
			slog.String("status", "fail"),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		logger.LogEvent(ctx, logger.CHAN, level, "remove.fail", attrs...)
		return &RemoveError{Ref: ref, Err: err}
	}
	logger.LogEvent(ctx, logger.CHAN, slog.LevelInfo, "remove.ok", append(attrs, slog.String("status", "ok"))...)
	return nil
}

func (t *Telegram) run(ctx context.Context, action, endpoint string, retry bool, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if t.runner != nil {
		return t.runner.Do(ctx, action, endpoint, retry, fn)
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isMissingMessage matches the Bot API descriptions for a post that cannot be found.
func isMissingMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message to delete not found") ||
		strings.Contains(msg, "message not found")
}
