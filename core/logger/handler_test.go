package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, format logFormat) (*slog.Logger, func() string) {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	read := func() string {
		if err := aw.Flush(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		if err := aw.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		return strings.TrimSpace(buf.String())
	}
	return slog.New(h), read
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, read := newTestLogger(t, formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", CompModeration), slog.LevelInfo, "decision.applied",
		slog.String("status", "OK"),
		slog.Int64("listing_id", 7),
		slog.String("verdict", "approve"),
	)

	tokens := strings.Split(read(), " ")
	expected := []string{
		"ts=", "level=INFO", "component=service.moderation", "event=decision.applied",
		"status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "listing_id=7",
	}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%v)", len(tokens), tokens)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONCompactRID(t *testing.T) {
	log, read := newTestLogger(t, formatJSON)
	raw := "12:34:56"
	LogEvent(WithRID(context.Background(), raw), log, slog.LevelError, "publish.fail",
		slog.String("err", "boom"),
	)

	line := read()
	if !strings.HasPrefix(line, `{"ts":`) {
		t.Fatalf("expected JSON, got %s", line)
	}
	for _, want := range []string{
		`"level":"ERROR"`,
		`"component":"app"`,
		`"rid":"` + CompactRID(raw) + `"`,
		`"rid_full":"` + raw + `"`,
		`"ts_unix_nano"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %s in %s", want, line)
		}
	}
}

func TestStructuredHandlerDurationsAndEmpty(t *testing.T) {
	log, read := newTestLogger(t, formatKV)
	LogEvent(context.Background(), log, slog.LevelInfo, "handler.handled",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("backoff", 2*time.Second),
		slog.String("username", ""),
		slog.String("outcome", "bogus"),
	)

	line := read()
	if !strings.Contains(line, "duration_ms=2") {
		t.Fatalf("expected rounded duration_ms, got %s", line)
	}
	if !strings.Contains(line, "backoff_ms=2000") {
		t.Fatalf("expected backoff_ms, got %s", line)
	}
	if strings.Contains(line, "username=") {
		t.Fatalf("empty strings must be pruned: %s", line)
	}
	if strings.Contains(line, "outcome=") {
		t.Fatalf("unknown outcome must be dropped: %s", line)
	}
}

func TestLogEventWithoutInitIsNoop(t *testing.T) {
	if L != nil {
		t.Skip("global logger initialised by another test")
	}
	Info(context.Background(), CompListings, "noop", slog.Int("count", 1))
	LogEvent(context.TODO(), nil, slog.LevelError, "noop")
}

func TestCompactRID(t *testing.T) {
	cases := map[string]string{
		"123:456:789": "3f.co.lx",
		"1:-1002:5":   "1.-ru.5",
		"not-a-rid":   "not-a-rid",
		"1:2":         "1:2",
		"1:x:3":       "1:x:3",
	}
	for in, want := range cases {
		if got := CompactRID(in); got != want {
			t.Errorf("CompactRID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}

	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler must allow everything")
	}

	if num, den := parseRatioSpec("50"); num != 1 || den != 50 {
		t.Fatalf("parseRatioSpec(50) = %d/%d", num, den)
	}
	if num, den := parseRatioSpec("2/5"); num != 2 || den != 5 {
		t.Fatalf("parseRatioSpec(2/5) = %d/%d", num, den)
	}
}
