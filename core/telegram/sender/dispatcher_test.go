package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcherKeepsPerKeyOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 1024})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 50; i++ {
		for _, key := range []int64{1, 2, 3} {
			i, key := i, key
			err := d.Enqueue(context.Background(), key, "send", "sendMessage", func() error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("Enqueue: %v", err)
			}
		}
	}
	d.Close()

	for _, key := range []int64{1, 2, 3} {
		seq := got[key]
		if len(seq) != 50 {
			t.Fatalf("key %d ran %d jobs", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("key %d out of order at %d: %v", key, i, seq)
			}
		}
	}
}

func TestDispatcherCountsFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	calls := 0
	_ = d.Enqueue(context.Background(), 9, "send", "sendMessage", func() error {
		calls++
		return errors.New("forbidden")
	})
	d.Close()
	if calls != 1 {
		t.Fatalf("permanent error must not be retried, calls = %d", calls)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("ErrorCount = %d", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	err := d.Enqueue(context.Background(), 1, "send", "", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAH-secret_tok/sendMessage": timeout`)
	got := sanitizeErrorMessage(err)
	want := `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`
	if got != want {
		t.Fatalf("sanitizeErrorMessage = %q", got)
	}
}
