// Package channel publishes ad posts to the public Telegram channel.
package channel

import (
	"context"
	"errors"
	"fmt"
)

// ErrPostGone reports that the post to remove no longer exists on the channel.
var ErrPostGone = errors.New("channel: post not found")

// Publisher posts and removes ad posts. Replacing a post is Remove followed by Publish.
type Publisher interface {
	// Publish posts caption, with the photo when one is given, and returns the post reference.
	Publish(ctx context.Context, photo, caption string) (string, error)
	Remove(ctx context.Context, ref string) error
}

// Observer receives per-call outcomes; *metrics.Metrics satisfies it.
type Observer interface {
	ObserveChannel(op, status string)
}

// PublishError wraps a failed publish.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string { return fmt.Sprintf("channel publish: %v", e.Err) }

func (e *PublishError) Unwrap() error { return e.Err }

// Code is used as err_code in handler summaries.
func (e *PublishError) Code() string { return "PUBLISH_FAILED" }

// RemoveError wraps a failed removal of the post identified by Ref.
type RemoveError struct {
	Ref string
	Err error
}

func (e *RemoveError) Error() string { return fmt.Sprintf("channel remove %s: %v", e.Ref, e.Err) }

func (e *RemoveError) Unwrap() error { return e.Err }

// Code is used as err_code in handler summaries.
func (e *RemoveError) Code() string {
	if errors.Is(e.Err, ErrPostGone) {
		return "POST_GONE"
	}
	return "REMOVE_FAILED"
}

// IsPostGone reports whether err means the post was already missing.
func IsPostGone(err error) bool {
	return errors.Is(err, ErrPostGone)
}

// Status strings reported to the Observer.
const (
	statusOK   = "ok"
	statusFail = "fail"
	statusGone = "gone"
)

func observe(o Observer, op string, err error) {
	if o == nil {
		return
	}
	switch {
	case err == nil:
		o.ObserveChannel(op, statusOK)
	case IsPostGone(err):
		o.ObserveChannel(op, statusGone)
	default:
		o.ObserveChannel(op, statusFail)
	}
}
