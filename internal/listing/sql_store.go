package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/bookmarket/core/logger"
)

const selectColumns = `id, user_id, username, title, author, price, condition, description,
	photo_file_id, status, created_at, notified_at`

// SQLStore implements Store on sqlx. Queries are written with '?' and rebound
// for the connected driver, so it runs on both postgres and sqlite.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Create inserts a pending listing and returns the id the database assigned.
func (s *SQLStore) Create(ctx context.Context, f Fields) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	start := time.Now()
	q := s.db.Rebind(`INSERT INTO listings
		(user_id, username, title, author, price, condition, description, photo_file_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, q,
		f.UserID, optional(f.Username), f.Title, f.Author, f.Price, f.Condition, f.Description,
		optional(f.PhotoRef), StatusPending, now(),
	).Scan(&id)
	if err != nil {
		logger.Error(ctx, logger.CompListings, "listing.create",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return 0, storageErr("create", err)
	}
	logger.Debug(ctx, logger.CompListings, "listing.create",
		slog.String("status", "ok"),
		slog.Int64("listing_id", id),
		slog.Duration("duration", logger.Took(start)),
	)
	return id, nil
}

// Get fetches one listing.
func (s *SQLStore) Get(ctx context.Context, id int64) (Listing, error) {
	var l Listing
	q := s.db.Rebind(`SELECT ` + selectColumns + ` FROM listings WHERE id = ?`)
	if err := s.db.GetContext(ctx, &l, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, storageErr("get", err)
	}
	return normalize(l), nil
}

// ListByStatus returns a page of listings whose status is in statuses.
func (s *SQLStore) ListByStatus(ctx context.Context, statuses []Status, limit, offset int) ([]Listing, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	limit, offset = pageBounds(limit, offset)
	q, args, err := sqlx.In(`SELECT `+selectColumns+` FROM listings
		WHERE status IN (?) ORDER BY id DESC LIMIT ? OFFSET ?`, statuses, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	return s.selectListings(ctx, "list_by_status", s.db.Rebind(q), args...)
}

// ListByUser returns all listings of one submitter.
func (s *SQLStore) ListByUser(ctx context.Context, userID int64) ([]Listing, error) {
	q := s.db.Rebind(`SELECT ` + selectColumns + ` FROM listings WHERE user_id = ? ORDER BY id DESC`)
	return s.selectListings(ctx, "list_by_user", q, userID)
}

// SetStatus overwrites the status unconditionally.
func (s *SQLStore) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("listing: unknown status %q", status)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE listings SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return storageErr("set_status", err)
	}
	return requireRow(res, "set_status")
}

// Transition is a compare-and-set on the status column.
func (s *SQLStore) Transition(ctx context.Context, id int64, from, to Status) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE listings SET status = ? WHERE id = ? AND status = ?`), to, id, from)
	if err != nil {
		return storageErr("transition", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("transition", err)
	}
	if n == 1 {
		logger.Info(ctx, logger.CompListings, "listing.transition",
			slog.String("status", "ok"),
			slog.Int64("listing_id", id),
			slog.String("listing_status", string(to)),
		)
		return nil
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: listing %d is %s", ErrInvalidTransition, id, cur.Status)
}

// MarkNotified stamps notified_at.
func (s *SQLStore) MarkNotified(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE listings SET notified_at = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return storageErr("mark_notified", err)
	}
	return requireRow(res, "mark_notified")
}

// ListUnnotified returns pending listings without a delivered moderation card.
// The age cutoff is applied after the query so timestamp text formats never matter.
func (s *SQLStore) ListUnnotified(ctx context.Context, createdBefore time.Time, limit int) ([]Listing, error) {
	limit, _ = pageBounds(limit, 0)
	q := s.db.Rebind(`SELECT ` + selectColumns + ` FROM listings
		WHERE status = ? AND notified_at IS NULL ORDER BY id ASC LIMIT ?`)
	rows, err := s.selectListings(ctx, "list_unnotified", q, StatusPending, limit)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, l := range rows {
		if !l.CreatedAt.Before(createdBefore) {
			break
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *SQLStore) selectListings(ctx context.Context, op, q string, args ...any) ([]Listing, error) {
	var out []Listing
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, storageErr(op, err)
	}
	for i := range out {
		out[i] = normalize(out[i])
	}
	return out, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// normalize pins timestamps to UTC; sqlite hands them back with a fixed zone.
func normalize(l Listing) Listing {
	l.CreatedAt = l.CreatedAt.UTC()
	if l.NotifiedAt != nil {
		t := l.NotifiedAt.UTC()
		l.NotifiedAt = &t
	}
	return l
}
