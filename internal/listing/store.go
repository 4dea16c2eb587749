package listing

import (
	"context"
	"math"
	"time"
)

// Store persists listings. Implementations must make single-row writes atomic.
type Store interface {
	// Create inserts a pending listing and returns its id.
	Create(ctx context.Context, f Fields) (int64, error)
	Get(ctx context.Context, id int64) (Listing, error)
	// ListByStatus returns listings in any of statuses, newest id first.
	// A negative limit means no limit; a negative offset counts as zero.
	ListByStatus(ctx context.Context, statuses []Status, limit, offset int) ([]Listing, error)
	// ListByUser returns every listing of a user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Listing, error)
	// SetStatus overwrites the status without checking the current one. Last write wins.
	SetStatus(ctx context.Context, id int64, status Status) error
	// Transition moves id from one status to another only if it is still in from.
	Transition(ctx context.Context, id int64, from, to Status) error
	// MarkNotified records that the moderation card for id was delivered.
	MarkNotified(ctx context.Context, id int64, at time.Time) error
	// ListUnnotified returns pending listings created before the cutoff whose
	// moderation card was never delivered, oldest first. A negative limit means no limit.
	ListUnnotified(ctx context.Context, createdBefore time.Time, limit int) ([]Listing, error)
}

// now is the clock used for created_at. Postgres keeps microseconds, so truncate to match.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func checkTransition(from, to Status) error {
	if !from.CanTransition(to) {
		return ErrInvalidTransition
	}
	return nil
}

// pageBounds applies the paging contract shared by every Store. Unbounded
// pages use math.MaxInt since Postgres rejects a negative LIMIT.
func pageBounds(limit, offset int) (int, int) {
	if limit < 0 {
		limit = math.MaxInt
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
