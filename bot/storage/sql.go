// Package storage implements ads.Store on top of sqlx and in memory.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/adboard/bot/ads"
	"github.com/m3rciful/adboard/core/logger"
)

const adColumns = "id, owner_id, title, description, photo, price, post_ref"

type queries struct {
	addUser    string
	getUser    string
	createAd   string
	getAd      string
	adsByOwner string
	updateAd   string
	setPostRef string
	deleteAd   string
}

// SQL is an ads.Store backed by PostgreSQL or SQLite through sqlx.
// Queries are written with '?' placeholders and rebound for the connected driver.
type SQL struct {
	db *sqlx.DB
	q  queries
}

var _ ads.Store = (*SQL)(nil)

// NewSQL wraps an open connection. The schema must already be migrated.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{
		db: db,
		q: queries{
			addUser:    db.Rebind(`INSERT INTO users (id, handle) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`),
			getUser:    db.Rebind(`SELECT id, handle FROM users WHERE id = ?`),
			createAd:   db.Rebind(`INSERT INTO ads (owner_id, title, description, photo, price, post_ref) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
			getAd:      db.Rebind(`SELECT ` + adColumns + ` FROM ads WHERE id = ?`),
			adsByOwner: db.Rebind(`SELECT ` + adColumns + ` FROM ads WHERE owner_id = ? ORDER BY id`),
			updateAd:   db.Rebind(`UPDATE ads SET title = ?, description = ?, photo = ?, price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
			setPostRef: db.Rebind(`UPDATE ads SET post_ref = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
			deleteAd:   db.Rebind(`DELETE FROM ads WHERE id = ?`),
		},
	}
}

// Ping checks connectivity; used by the health endpoint.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddUser implements ads.Store.
func (s *SQL) AddUser(ctx context.Context, u ads.User) (created bool, err error) {
	defer s.observe(ctx, "add_user", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, s.q.addUser, u.ID, u.Handle)
	if err != nil {
		return false, fmt.Errorf("add user %d: %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add user %d: %w", u.ID, err)
	}
	return n > 0, nil
}

// GetUser implements ads.Store.
func (s *SQL) GetUser(ctx context.Context, id int64) (u ads.User, err error) {
	defer s.observe(ctx, "get_user", time.Now(), &err)
	if err = s.db.GetContext(ctx, &u, s.q.getUser, id); err != nil {
		return ads.User{}, wrapNotFound(err, "get user %d", id)
	}
	return u, nil
}

// CreateAd implements ads.Store.
func (s *SQL) CreateAd(ctx context.Context, ownerID int64, f ads.Fields, postRef string) (id int64, err error) {
	defer s.observe(ctx, "create_ad", time.Now(), &err)
	err = s.db.QueryRowxContext(ctx, s.q.createAd,
		ownerID, f.Title, f.Description, f.Photo, f.Price, postRef,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create ad for %d: %w", ownerID, err)
	}
	return id, nil
}

// GetAd implements ads.Store.
func (s *SQL) GetAd(ctx context.Context, id int64) (ad ads.Ad, err error) {
	defer s.observe(ctx, "get_ad", time.Now(), &err)
	if err = s.db.GetContext(ctx, &ad, s.q.getAd, id); err != nil {
		return ads.Ad{}, wrapNotFound(err, "get ad %d", id)
	}
	return ad, nil
}

// GetAdsByOwner implements ads.Store.
func (s *SQL) GetAdsByOwner(ctx context.Context, ownerID int64) (list []ads.Ad, err error) {
	defer s.observe(ctx, "ads_by_owner", time.Now(), &err)
	if err = s.db.SelectContext(ctx, &list, s.q.adsByOwner, ownerID); err != nil {
		return nil, fmt.Errorf("list ads of %d: %w", ownerID, err)
	}
	return list, nil
}

// UpdateAd implements ads.Store.
func (s *SQL) UpdateAd(ctx context.Context, id int64, f ads.Fields) (err error) {
	defer s.observe(ctx, "update_ad", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, s.q.updateAd, f.Title, f.Description, f.Photo, f.Price, id)
	return expectRow(res, err, "update ad %d", id)
}

// SetPostRef implements ads.Store.
func (s *SQL) SetPostRef(ctx context.Context, id int64, postRef string) (err error) {
	defer s.observe(ctx, "set_post_ref", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, s.q.setPostRef, postRef, id)
	return expectRow(res, err, "set post ref of ad %d", id)
}

// DeleteAd implements ads.Store.
func (s *SQL) DeleteAd(ctx context.Context, id int64) (err error) {
	defer s.observe(ctx, "delete_ad", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, s.q.deleteAd, id)
	return expectRow(res, err, "delete ad %d", id)
}

// Close closes the underlying connection pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) observe(ctx context.Context, op string, start time.Time, errp *error) {
	err := *errp
	if err == nil && !logger.ShouldSampleDebug() {
		return
	}
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("event", "db.query"),
		slog.String("op", op),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil && !errors.Is(err, ads.ErrNotFound) {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.DB.LogAttrs(ctx, level, "db query", attrs...)
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, ads.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func expectRow(res sql.Result, err error, format string, args ...any) error {
	if err != nil {
		return fmt.Errorf(format+": %w", append(args, err)...)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf(format+": %w", append(args, err)...)
	}
	if n == 0 {
		return fmt.Errorf(format+": %w", append(args, ads.ErrNotFound)...)
	}
	return nil
}
