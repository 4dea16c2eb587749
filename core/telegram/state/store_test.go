package state

import (
	"errors"
	"sync"
	"testing"
)

type draft struct {
	Title string
	Steps int
}

const stepTitle State = "title"

func TestStoreDoLifecycle(t *testing.T) {
	s := NewStore[draft]()
	if s.Active(1) {
		t.Fatal("fresh store must have no sessions")
	}

	err := s.Do(1, func(cur *Session[draft]) (*Session[draft], error) {
		if cur != nil {
			t.Fatalf("expected nil session, got %+v", cur)
		}
		return &Session[draft]{State: stepTitle}, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	got, ok := s.Get(1)
	if !ok || got.State != stepTitle {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}

	boom := errors.New("boom")
	err = s.Do(1, func(cur *Session[draft]) (*Session[draft], error) {
		cur.Data.Title = "mutated"
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do err = %v", err)
	}
	if got, _ := s.Get(1); got.Data.Title != "" {
		t.Fatalf("failed update leaked into store: %+v", got)
	}

	if err := s.Do(1, func(*Session[draft]) (*Session[draft], error) { return nil, nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if s.Active(1) || s.Len() != 0 {
		t.Fatalf("session must be cleared, len=%d", s.Len())
	}
}

func TestStoreIdleResultClears(t *testing.T) {
	s := NewStore[draft]()
	_ = s.Do(7, func(*Session[draft]) (*Session[draft], error) { return &Session[draft]{State: stepTitle}, nil })
	_ = s.Do(7, func(*Session[draft]) (*Session[draft], error) { return &Session[draft]{State: StateIdle}, nil })
	if s.Active(7) {
		t.Fatal("idle session must not be stored")
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore[draft]()
	if s.Clear(3) {
		t.Fatal("Clear on empty key must report false")
	}
	_ = s.Do(3, func(*Session[draft]) (*Session[draft], error) { return &Session[draft]{State: stepTitle}, nil })
	if !s.Clear(3) {
		t.Fatal("Clear must report the removed session")
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestStoreSerializesPerKey(t *testing.T) {
	s := NewStore[draft]()
	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for i := 0; i < workers; i++ {
		for _, key := range []int64{10, 20} {
			go func(key int64) {
				defer wg.Done()
				_ = s.Do(key, func(cur *Session[draft]) (*Session[draft], error) {
					if cur == nil {
						cur = &Session[draft]{State: stepTitle}
					}
					cur.Data.Steps++
					return cur, nil
				})
			}(key)
		}
	}
	wg.Wait()

	for _, key := range []int64{10, 20} {
		got, ok := s.Get(key)
		if !ok || got.Data.Steps != workers {
			t.Fatalf("key %d: steps = %d, want %d", key, got.Data.Steps, workers)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
}
