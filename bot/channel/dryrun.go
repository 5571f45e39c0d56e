package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/m3rciful/adboard/core/logger"
)

// DryRun stands in for a channel: posts are logged and tracked in memory only.
type DryRun struct {
	mu       sync.Mutex
	posts    map[string]string
	observer Observer
}

var _ Publisher = (*DryRun)(nil)

// NewDryRun returns an empty dry-run publisher.
func NewDryRun(o Observer) *DryRun {
	return &DryRun{posts: make(map[string]string), observer: o}
}

// Publish records the caption under a fresh uuid reference.
func (d *DryRun) Publish(ctx context.Context, photo, caption string) (string, error) {
	ref := uuid.NewString()
	d.mu.Lock()
	d.posts[ref] = caption
	d.mu.Unlock()

	observe(d.observer, "publish", nil)
	logger.LogEvent(ctx, logger.CHAN, slog.LevelInfo, "publish.dry_run",
		slog.String("status", "ok"),
		slog.String("post_ref", ref),
		slog.Bool("photo", photo != ""),
		slog.String("caption", logger.SanitizeLimit(caption, 80)),
	)
	return ref, nil
}

// Remove forgets a known reference; unknown references report ErrPostGone.
func (d *DryRun) Remove(ctx context.Context, ref string) error {
	d.mu.Lock()
	_, ok := d.posts[ref]
	delete(d.posts, ref)
	d.mu.Unlock()

	if !ok {
		err := &RemoveError{Ref: ref, Err: fmt.Errorf("dry run: %w", ErrPostGone)}
		observe(d.observer, "remove", err)
		return err
	}
	observe(d.observer, "remove", nil)
	logger.LogEvent(ctx, logger.CHAN, slog.LevelInfo, "remove.dry_run",
		slog.String("status", "ok"),
		slog.String("post_ref", ref),
	)
	return nil
}

// Posts returns the number of live posts.
func (d *DryRun) Posts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.posts)
}
