package bot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	coretelegram "github.com/m3rciful/bookmarket/core/telegram"
	"github.com/m3rciful/bookmarket/internal/messaging"

	tele "gopkg.in/telebot.v4"
)

func TestSendDeliversSlowPostOnce(t *testing.T) {
	var sends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			sends.Add(1)
		}
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	b, err := tele.NewBot(tele.Settings{
		URL:     srv.URL,
		Token:   "TOKEN",
		Offline: true,
		Client:  coretelegram.BuildHTTPClient(coretelegram.HTTPClientOptions{ResponseTimeout: 50 * time.Millisecond}),
	})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	m := NewMessenger(b, nil, MessengerOptions{Attempts: 3, Backoff: time.Millisecond})

	_, err = m.Send(context.Background(), -100, messaging.Message{Text: "📚 Algebra"})
	var te *messaging.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if got := sends.Load(); got != 1 {
		t.Fatalf("sendMessage reached the server %d times, want 1", got)
	}
}
