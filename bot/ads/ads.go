// Package ads defines the classified-ad domain model and the store contract.
package ads

import (
	"context"
	"errors"
	"strings"

	"github.com/m3rciful/adboard/core/telegram/format"
)

// ErrNotFound is returned when a user or ad does not exist.
var ErrNotFound = errors.New("ads: not found")

// User is a Telegram user known to the bot.
type User struct {
	ID     int64  `db:"id"`
	Handle string `db:"handle"`
}

// Fields are the user-editable parts of an ad.
type Fields struct {
	Title       string `db:"title"`
	Description string `db:"description"`
	// Photo is a Telegram file id; empty means a text-only post.
	Photo string  `db:"photo"`
	Price float64 `db:"price"`
}

// Ad is a persisted listing together with the reference to its channel post.
type Ad struct {
	ID      int64 `db:"id"`
	OwnerID int64 `db:"owner_id"`
	Fields
	PostRef string `db:"post_ref"`
}

// Published reports whether the ad has a channel post.
func (a Ad) Published() bool {
	return a.PostRef != ""
}

// Caption renders the channel post body: title, optional description, price.
func Caption(f Fields) string {
	var b strings.Builder
	b.WriteString(f.Title)
	if f.Description != "" {
		b.WriteString("\n")
		b.WriteString(f.Description)
	}
	b.WriteString("\nPrice: ")
	b.WriteString(format.Price(f.Price))
	return format.Truncate(b.String(), format.CaptionLimit)
}

// Store persists users and ads. Implementations are plain CRUD without business rules.
type Store interface {
	// AddUser inserts the user if missing and reports whether a row was created.
	AddUser(ctx context.Context, u User) (bool, error)
	GetUser(ctx context.Context, id int64) (User, error)
	// CreateAd stores a published ad and returns its id.
	CreateAd(ctx context.Context, ownerID int64, f Fields, postRef string) (int64, error)
	GetAd(ctx context.Context, id int64) (Ad, error)
	// GetAdsByOwner returns the owner's ads in insertion order.
	GetAdsByOwner(ctx context.Context, ownerID int64) ([]Ad, error)
	// UpdateAd replaces the editable fields; the post reference is left as is.
	UpdateAd(ctx context.Context, id int64, f Fields) error
	SetPostRef(ctx context.Context, id int64, postRef string) error
	DeleteAd(ctx context.Context, id int64) error
	Close() error
}
