package submission

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/bookmarket/core/telegram/state"
	"github.com/m3rciful/bookmarket/internal/listing"
	"github.com/m3rciful/bookmarket/internal/messaging"
	"github.com/m3rciful/bookmarket/internal/messaging/messagingtest"
)

const chatID = int64(100)

var seller = messaging.User{ID: 42, Username: "reader"}

type fakeNotifier struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (f *fakeNotifier) SubmitForModeration(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return f.err
}

func (f *fakeNotifier) calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.ids...)
}

type fixture struct {
	m      *Machine
	store  *listing.MemoryStore
	rec    *messagingtest.Recorder
	notify *fakeNotifier
}

func newFixture() *fixture {
	f := &fixture{
		store:  listing.NewMemoryStore(),
		rec:    messagingtest.New(),
		notify: &fakeNotifier{},
	}
	f.m = NewMachine(f.store, f.rec, f.notify)
	return f
}

func (f *fixture) say(t *testing.T, text string) {
	t.Helper()
	if err := f.m.Handle(context.Background(), messaging.Inbound{ChatID: chatID, From: seller, Text: text}); err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
}

func (f *fixture) lastText(t *testing.T) string {
	t.Helper()
	last, ok := f.rec.Last(chatID)
	if !ok {
		t.Fatal("no reply recorded")
	}
	return last.Msg.Text
}

func (f *fixture) fillUntilPhoto(t *testing.T) {
	t.Helper()
	f.m.Start(context.Background(), chatID, seller)
	for _, text := range []string{"  Algebra ", "J. Smith", "200", "Good", "No marks"} {
		f.say(t, text)
	}
	if got := f.m.Step(chatID); got != StepPhotoChoice {
		t.Fatalf("step=%s want %s", got, StepPhotoChoice)
	}
}

func TestMachineCommitCreatesOnePendingListing(t *testing.T) {
	f := newFixture()
	f.fillUntilPhoto(t)
	f.say(t, BtnSkip)
	if got := f.m.Step(chatID); got != StepConfirm {
		t.Fatalf("step=%s want confirm", got)
	}
	f.say(t, BtnConfirm)

	rows, _ := f.store.ListByUser(context.Background(), seller.ID)
	if len(rows) != 1 {
		t.Fatalf("listings=%d want 1", len(rows))
	}
	got := rows[0]
	want := listing.Fields{
		UserID: 42, Username: "reader",
		Title: "Algebra", Author: "J. Smith", Price: "200", Condition: "Good", Description: "No marks",
	}
	if got.Fields() != want {
		t.Fatalf("fields=%+v want %+v", got.Fields(), want)
	}
	if got.Status != listing.StatusPending {
		t.Fatalf("status=%s want pending", got.Status)
	}
	if ids := f.notify.calls(); len(ids) != 1 || ids[0] != got.ID {
		t.Fatalf("notifications=%v want [%d]", ids, got.ID)
	}
	if f.m.Active(chatID) {
		t.Fatal("session must be cleared after commit")
	}
	if !strings.Contains(f.lastText(t), "ID 1") {
		t.Fatalf("confirmation=%q must mention the id", f.lastText(t))
	}
}

func TestMachineStoresLargestPhoto(t *testing.T) {
	f := newFixture()
	f.fillUntilPhoto(t)
	f.say(t, BtnAddPhoto)
	if got := f.m.Step(chatID); got != StepWaitingPhoto {
		t.Fatalf("step=%s want waiting_photo", got)
	}

	f.say(t, "here it comes")
	if got := f.m.Step(chatID); got != StepWaitingPhoto {
		t.Fatalf("text must not advance waiting_photo, step=%s", got)
	}
	_ = f.m.Handle(context.Background(), messaging.Inbound{ChatID: chatID, From: seller, Document: true})
	if !strings.Contains(f.lastText(t), "not as a file") {
		t.Fatalf("document reprompt=%q", f.lastText(t))
	}

	err := f.m.Handle(context.Background(), messaging.Inbound{
		ChatID: chatID,
		From:   seller,
		Photos: []messaging.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		},
	})
	if err != nil {
		t.Fatalf("Handle photo: %v", err)
	}
	if got := f.m.Step(chatID); got != StepConfirm {
		t.Fatalf("step=%s want confirm", got)
	}
	last, _ := f.rec.Last(chatID)
	if last.Msg.PhotoRef != "large" {
		t.Fatalf("preview photo=%q want large", last.Msg.PhotoRef)
	}

	f.say(t, BtnConfirm)
	l, err := f.store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if l.PhotoRef == nil || *l.PhotoRef != "large" {
		t.Fatalf("photo_ref=%v want large", l.PhotoRef)
	}
}

func TestMachineRepromptsWithoutAdvancing(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		input string
		step  state.State
	}{
		{
			name:  "blank title",
			setup: func(t *testing.T, f *fixture) { f.m.Start(context.Background(), chatID, seller) },
			input: "   ",
			step:  StepTitle,
		},
		{
			name:  "unknown photo choice",
			setup: func(t *testing.T, f *fixture) { f.fillUntilPhoto(t) },
			input: "maybe",
			step:  StepPhotoChoice,
		},
		{
			name: "unknown confirm answer",
			setup: func(t *testing.T, f *fixture) {
				f.fillUntilPhoto(t)
				f.say(t, BtnSkip)
			},
			input: "hmm",
			step:  StepConfirm,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.setup(t, f)
			before := len(f.rec.SentTo(chatID))
			f.say(t, tc.input)
			if got := f.m.Step(chatID); got != tc.step {
				t.Fatalf("step=%s want %s", got, tc.step)
			}
			if len(f.rec.SentTo(chatID)) != before+1 {
				t.Fatal("expected exactly one reprompt")
			}
			if rows, _ := f.store.ListByUser(context.Background(), seller.ID); len(rows) != 0 {
				t.Fatalf("reprompt created %d listings", len(rows))
			}
		})
	}
}

func TestMachineCancelAtConfirmDiscards(t *testing.T) {
	f := newFixture()
	f.fillUntilPhoto(t)
	f.say(t, BtnSkip)
	f.say(t, BtnCancel)

	if f.m.Active(chatID) {
		t.Fatal("session must be gone after cancel")
	}
	if rows, _ := f.store.ListByUser(context.Background(), seller.ID); len(rows) != 0 {
		t.Fatalf("cancel created %d listings", len(rows))
	}
	if len(f.notify.calls()) != 0 {
		t.Fatal("cancel must not notify moderation")
	}
}

func TestMachineStorageFailureKeepsConfirm(t *testing.T) {
	f := newFixture()
	f.fillUntilPhoto(t)
	f.say(t, BtnSkip)

	f.store.FailWith = errors.New("connection refused")
	f.say(t, BtnConfirm)
	if got := f.m.Step(chatID); got != StepConfirm {
		t.Fatalf("step=%s want confirm after storage failure", got)
	}
	if !strings.Contains(f.lastText(t), "try again") {
		t.Fatalf("failure reply=%q", f.lastText(t))
	}
	if len(f.notify.calls()) != 0 {
		t.Fatal("failed commit must not notify")
	}

	f.store.FailWith = nil
	f.say(t, BtnConfirm)
	if rows, _ := f.store.ListByUser(context.Background(), seller.ID); len(rows) != 1 {
		t.Fatalf("retry listings=%d want 1", len(rows))
	}
}

func TestMachineNotifyFailureKeepsListing(t *testing.T) {
	f := newFixture()
	f.notify.err = errors.New("chat not found")
	f.fillUntilPhoto(t)
	f.say(t, BtnSkip)
	f.say(t, BtnConfirm)

	l, err := f.store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if l.Status != listing.StatusPending || l.NotifiedAt != nil {
		t.Fatalf("orphan listing=%+v want pending and unnotified", l)
	}
	if f.m.Active(chatID) {
		t.Fatal("session must be cleared even when notification fails")
	}
}

func TestMachineIgnoresChatsWithoutSession(t *testing.T) {
	f := newFixture()
	f.say(t, "hello")
	if len(f.rec.Sent()) != 0 {
		t.Fatal("no reply expected without a session")
	}
	if f.m.Cancel(context.Background(), chatID) {
		t.Fatal("Cancel must report false without a session")
	}
}

func TestMachineStartRestartsDraft(t *testing.T) {
	f := newFixture()
	f.fillUntilPhoto(t)
	f.m.Start(context.Background(), chatID, seller)
	if got := f.m.Step(chatID); got != StepTitle {
		t.Fatalf("step=%s want title", got)
	}
	f.say(t, "Geometry")
	sess, _ := f.m.sessions.Get(chatID)
	if sess.Data.Author != "" || sess.Data.Title != "Geometry" {
		t.Fatalf("restarted draft=%+v", sess.Data)
	}
}

func TestMachineSessionsAreIndependent(t *testing.T) {
	f := newFixture()
	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			ctx := context.Background()
			user := messaging.User{ID: chat}
			f.m.Start(ctx, chat, user)
			for _, text := range []string{"T", "A", "1", "New", "D", BtnSkip, BtnConfirm} {
				_ = f.m.Handle(ctx, messaging.Inbound{ChatID: chat, From: user, Text: text})
			}
		}(i)
	}
	wg.Wait()

	rows, _ := f.store.ListByStatus(context.Background(), []listing.Status{listing.StatusPending}, -1, 0)
	if len(rows) != 20 {
		t.Fatalf("listings=%d want 20", len(rows))
	}
	if n := len(f.notify.calls()); n != 20 {
		t.Fatalf("notifications=%d want 20", n)
	}
}
