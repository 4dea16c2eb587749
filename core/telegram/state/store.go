package state

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const shardCount = 32

// UpdateFunc receives a copy of the current session (nil when absent) and returns
// the replacement. Returning nil removes the session. A non-nil error leaves the
// stored session untouched.
type UpdateFunc[T any] func(cur *Session[T]) (*Session[T], error)

type entry[T any] struct {
	mu   sync.Mutex
	refs int
	sess *Session[T]
}

type shard[T any] struct {
	mu      sync.Mutex
	entries map[int64]*entry[T]
}

// Store keeps one session per key. Updates for the same key are serialized,
// updates for different keys proceed in parallel.
type Store[T any] struct {
	seed   maphash.Seed
	shards [shardCount]shard[T]
	active atomic.Int64
}

// NewStore returns an empty store.
func NewStore[T any]() *Store[T] {
	s := &Store[T]{seed: maphash.MakeSeed()}
	for i := range s.shards {
		s.shards[i].entries = make(map[int64]*entry[T])
	}
	return s
}

func (s *Store[T]) shardFor(key int64) *shard[T] {
	return &s.shards[maphash.Comparable(s.seed, key)%shardCount]
}

// acquire returns the locked entry for key, creating it when needed.
func (s *Store[T]) acquire(key int64) (*shard[T], *entry[T]) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok {
		e = &entry[T]{}
		sh.entries[key] = e
	}
	e.refs++
	sh.mu.Unlock()

	e.mu.Lock()
	return sh, e
}

func (s *Store[T]) release(key int64, sh *shard[T], e *entry[T]) {
	e.mu.Unlock()

	sh.mu.Lock()
	e.refs--
	if e.refs == 0 && e.sess == nil {
		delete(sh.entries, key)
	}
	sh.mu.Unlock()
}

// Do runs fn while holding the lock for key and stores its result.
func (s *Store[T]) Do(key int64, fn UpdateFunc[T]) error {
	sh, e := s.acquire(key)
	defer s.release(key, sh, e)

	var cur *Session[T]
	if e.sess != nil {
		cp := *e.sess
		cur = &cp
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next != nil && !next.Active() {
		next = nil
	}
	s.set(e, next)
	return nil
}

// Get returns a snapshot of the session for key.
func (s *Store[T]) Get(key int64) (Session[T], bool) {
	sh, e := s.acquire(key)
	defer s.release(key, sh, e)
	if e.sess == nil {
		return Session[T]{State: StateIdle}, false
	}
	return *e.sess, true
}

// Active reports whether key has a session in progress.
func (s *Store[T]) Active(key int64) bool {
	_, ok := s.Get(key)
	return ok
}

// Clear removes the session for key and reports whether one existed.
func (s *Store[T]) Clear(key int64) bool {
	sh, e := s.acquire(key)
	defer s.release(key, sh, e)
	had := e.sess != nil
	s.set(e, nil)
	return had
}

// Len returns the number of sessions in progress.
func (s *Store[T]) Len() int {
	return int(s.active.Load())
}

func (s *Store[T]) set(e *entry[T], next *Session[T]) {
	switch {
	case e.sess == nil && next != nil:
		s.active.Add(1)
	case e.sess != nil && next == nil:
		s.active.Add(-1)
	}
	e.sess = next
}
