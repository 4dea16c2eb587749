// Package listing holds the Listing model, its status machine and the
// persistence contract with SQL and in-memory implementations.
package listing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the moderation state of a listing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// DefaultFeedStatuses are shown when browsing; rejected listings stay hidden.
var DefaultFeedStatuses = []Status{StatusPending, StatusApproved}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a listing may move from s to next.
// Only pending listings can be decided, and only once.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// Listing is one item offered for sale.
type Listing struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	Username    *string    `db:"username"`
	Title       string     `db:"title"`
	Author      string     `db:"author"`
	Price       string     `db:"price"`
	Condition   string     `db:"condition"`
	Description string     `db:"description"`
	PhotoRef    *string    `db:"photo_file_id"`
	Status      Status     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	NotifiedAt  *time.Time `db:"notified_at"`
}

// Fields are the user-supplied parts of a listing. Empty optional strings mean unset.
type Fields struct {
	UserID      int64
	Username    string
	Title       string
	Author      string
	Price       string
	Condition   string
	Description string
	PhotoRef    string
}

// Fields returns the user-supplied parts of l.
func (l Listing) Fields() Fields {
	f := Fields{
		UserID:      l.UserID,
		Title:       l.Title,
		Author:      l.Author,
		Price:       l.Price,
		Condition:   l.Condition,
		Description: l.Description,
	}
	if l.Username != nil {
		f.Username = *l.Username
	}
	if l.PhotoRef != nil {
		f.PhotoRef = *l.PhotoRef
	}
	return f
}

// Validate checks that every required field is present.
func (f Fields) Validate() error {
	required := [...]struct{ name, value string }{
		{"title", f.Title},
		{"author", f.Author},
		{"price", f.Price},
		{"condition", f.Condition},
		{"description", f.Description},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

var (
	// ErrNotFound is returned when no listing has the requested id.
	ErrNotFound = errors.New("listing: not found")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the listing's current status.
	ErrInvalidTransition = errors.New("listing: invalid status transition")
	// ErrIncomplete is returned by Create when required fields are empty.
	ErrIncomplete = errors.New("listing: required fields missing")
)

// StorageError wraps a persistence failure such as lost connectivity or a violated constraint.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("listing storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Code is picked up by the router summary logs.
func (e *StorageError) Code() string { return "STORAGE" }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
