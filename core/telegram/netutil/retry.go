package netutil

import (
	"context"
	"errors"
	"net"
	"time"

	tele "gopkg.in/telebot.v4"
)

// maxFloodWait caps how long Retry honours a Telegram "retry after" hint.
const maxFloodWait = 30 * time.Second

// ShouldRetry reports whether an API call can be repeated without the
// risk of Telegram acting on it twice: flood control, or a request that
// never left the host. Timeouts are not retried since the request may
// already have been accepted.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := FloodWait(err); ok {
		return true
	}
	return NotSent(err)
}

// NotSent reports whether err proves the request never reached the server,
// i.e. the connection could not be established.
func NotSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "proxyconnect"
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// FloodWait extracts the server-requested delay from a flood control error.
func FloodWait(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return time.Duration(floodPtr.RetryAfter) * time.Second, true
	}
	return 0, false
}

// Retry runs fn up to attempts times while it fails with a retryable error.
// The delay grows linearly with backoff, or follows the flood-wait hint when present.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts || !ShouldRetry(err) {
			return err
		}
		delay := backoff * time.Duration(attempt)
		if wait, ok := FloodWait(err); ok {
			delay = min(wait, maxFloodWait)
		}
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
