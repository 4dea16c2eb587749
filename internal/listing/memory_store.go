package listing

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]Listing
	// FailWith, when set, is returned (wrapped as a StorageError) by every write.
	FailWith error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]Listing)}
}

func (m *MemoryStore) Create(_ context.Context, f Fields) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, storageErr("create", m.FailWith)
	}
	m.nextID++
	m.rows[m.nextID] = Listing{
		ID:          m.nextID,
		UserID:      f.UserID,
		Username:    optional(f.Username),
		Title:       f.Title,
		Author:      f.Author,
		Price:       f.Price,
		Condition:   f.Condition,
		Description: f.Description,
		PhotoRef:    optional(f.PhotoRef),
		Status:      StatusPending,
		CreatedAt:   now(),
	}
	return m.nextID, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.rows[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, statuses []Status, limit, offset int) ([]Listing, error) {
	out := m.filter(func(l Listing) bool { return slices.Contains(statuses, l.Status) })
	slices.Reverse(out)
	limit, offset = pageBounds(limit, offset)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID int64) ([]Listing, error) {
	out := m.filter(func(l Listing) bool { return l.UserID == userID })
	slices.Reverse(out)
	return out, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("listing: unknown status %q", status)
	}
	return m.update("set_status", id, func(l *Listing) error {
		l.Status = status
		return nil
	})
}

func (m *MemoryStore) Transition(_ context.Context, id int64, from, to Status) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}
	return m.update("transition", id, func(l *Listing) error {
		if l.Status != from {
			return fmt.Errorf("%w: listing %d is %s", ErrInvalidTransition, id, l.Status)
		}
		l.Status = to
		return nil
	})
}

func (m *MemoryStore) MarkNotified(_ context.Context, id int64, at time.Time) error {
	return m.update("mark_notified", id, func(l *Listing) error {
		t := at.UTC()
		l.NotifiedAt = &t
		return nil
	})
}

func (m *MemoryStore) ListUnnotified(_ context.Context, createdBefore time.Time, limit int) ([]Listing, error) {
	out := m.filter(func(l Listing) bool {
		return l.Status == StatusPending && l.NotifiedAt == nil && l.CreatedAt.Before(createdBefore)
	})
	if limit, _ = pageBounds(limit, 0); limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// filter returns matching rows in ascending id order.
func (m *MemoryStore) filter(keep func(Listing) bool) []Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Listing
	for _, l := range m.rows {
		if keep(l) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b Listing) int { return int(a.ID - b.ID) })
	return out
}

func (m *MemoryStore) update(op string, id int64, fn func(*Listing) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return storageErr(op, m.FailWith)
	}
	l, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&l); err != nil {
		return err
	}
	m.rows[id] = l
	return nil
}
