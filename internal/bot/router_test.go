package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m3rciful/bookmarket/internal/listing"
	"github.com/m3rciful/bookmarket/internal/messaging"
	"github.com/m3rciful/bookmarket/internal/messaging/messagingtest"
	"github.com/m3rciful/bookmarket/internal/moderation"
	"github.com/m3rciful/bookmarket/internal/submission"
	"github.com/m3rciful/bookmarket/internal/views"
)

const (
	modChat    = int64(-100500)
	publicChan = int64(-100600)
	userChat   = int64(31)
	adminID    = int64(900)
)

var seller = messaging.User{ID: userChat, Username: "reader"}

type harness struct {
	r     *Router
	store *listing.MemoryStore
	rec   *messagingtest.Recorder
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{store: listing.NewMemoryStore(), rec: messagingtest.New()}
	auth := moderation.NewAuthorizer(modChat, []int64{adminID}, h.rec)
	mod := moderation.NewService(h.store, h.rec, auth, moderation.Options{
		ModerationChatID: modChat,
		PublicChannelID:  publicChan,
	})
	form := submission.NewMachine(h.store, h.rec, mod)
	h.r = NewRouter(h.store, form, mod, auth, h.rec, opts)
	return h
}

func (h *harness) say(t *testing.T, text string) {
	t.Helper()
	if err := h.r.HandleMessage(context.Background(), messaging.Inbound{ChatID: userChat, From: seller, Text: text}); err != nil {
		t.Fatalf("HandleMessage(%q): %v", text, err)
	}
}

func (h *harness) click(t *testing.T, key, payload string, actor int64) {
	t.Helper()
	err := h.r.HandleCallback(context.Background(), messaging.Callback{
		ID:      "cb",
		ChatID:  modChat,
		Message: messaging.MessageRef{ChatID: modChat, MessageID: 10},
		From:    messaging.User{ID: actor},
		Key:     key,
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCallback(%s:%s): %v", key, payload, err)
	}
}

func (h *harness) submit(t *testing.T) {
	t.Helper()
	h.say(t, views.MenuAdd)
	for _, text := range []string{"Algebra", "J. Smith", "200", "Good", "No marks", submission.BtnSkip, submission.BtnConfirm} {
		h.say(t, text)
	}
}

func TestScenarioSubmitReachesModeration(t *testing.T) {
	h := newHarness(t, Options{})
	h.submit(t)

	rows, _ := h.store.ListByUser(context.Background(), seller.ID)
	if len(rows) != 1 {
		t.Fatalf("listings=%d want 1", len(rows))
	}
	l := rows[0]
	if l.Title != "Algebra" || l.Author != "J. Smith" || l.Price != "200" || l.Condition != "Good" || l.Description != "No marks" {
		t.Fatalf("listing=%+v", l)
	}
	if l.Status != listing.StatusPending {
		t.Fatalf("status=%s", l.Status)
	}
	cards := h.rec.SentTo(modChat)
	if len(cards) != 1 || !strings.Contains(cards[0].Msg.Text, "ID 1") {
		t.Fatalf("cards=%+v", cards)
	}
}

func TestScenarioAdminApprovePublishes(t *testing.T) {
	h := newHarness(t, Options{})
	h.submit(t)
	h.rec.Reset()

	h.click(t, views.KeyApprove, "1", adminID)
	l, _ := h.store.Get(context.Background(), 1)
	if l.Status != listing.StatusApproved {
		t.Fatalf("status=%s want approved", l.Status)
	}
	posts := h.rec.SentTo(publicChan)
	if len(posts) != 1 {
		t.Fatalf("posts=%d want 1", len(posts))
	}
	for _, want := range []string{"Algebra", "J. Smith", "200", "Good", "No marks"} {
		if !strings.Contains(posts[0].Msg.Text, want) {
			t.Fatalf("post missing %q: %q", want, posts[0].Msg.Text)
		}
	}
}

func TestScenarioNonAdminApproveDenied(t *testing.T) {
	h := newHarness(t, Options{})
	h.submit(t)
	h.rec.Reset()

	h.click(t, views.KeyApprove, "1", 12345)
	l, _ := h.store.Get(context.Background(), 1)
	if l.Status != listing.StatusPending {
		t.Fatalf("status=%s want pending", l.Status)
	}
	if len(h.rec.SentTo(publicChan)) != 0 {
		t.Fatal("denied click must not publish")
	}
	answers := h.rec.Answers()
	if len(answers) != 1 || !answers[0].Alert {
		t.Fatalf("answers=%+v want one denial alert", answers)
	}
}

func TestChannelAdministratorMayModerate(t *testing.T) {
	h := newHarness(t, Options{})
	h.submit(t)
	h.rec.SetRole(777, messaging.RoleAdministrator)

	h.click(t, views.KeyReject, "1", 777)
	l, _ := h.store.Get(context.Background(), 1)
	if l.Status != listing.StatusRejected {
		t.Fatalf("status=%s want rejected", l.Status)
	}
}

func TestMenuPhraseDivertsSession(t *testing.T) {
	h := newHarness(t, Options{})
	h.say(t, views.MenuAdd)
	h.say(t, "Algebra")

	h.say(t, views.MenuMine)
	if h.r.form.Active(userChat) {
		t.Fatal("menu phrase must discard the session")
	}
	last, _ := h.rec.Last(userChat)
	if last.Msg.Text != replyNoListings {
		t.Fatalf("reply=%q want the my-listings answer", last.Msg.Text)
	}

	h.say(t, "J. Smith")
	last, _ = h.rec.Last(userChat)
	if last.Msg.Text != replyUnknown {
		t.Fatalf("reply=%q want fallback", last.Msg.Text)
	}
	if rows, _ := h.store.ListByUser(context.Background(), seller.ID); len(rows) != 0 {
		t.Fatal("diverted session must not create a listing")
	}
}

func TestAddPhraseMidSessionRestarts(t *testing.T) {
	h := newHarness(t, Options{})
	h.say(t, views.MenuAdd)
	h.say(t, "Algebra")
	h.say(t, views.MenuAdd)
	if got := h.r.form.Step(userChat); got != submission.StepTitle {
		t.Fatalf("step=%s want title", got)
	}
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(t, Options{})
	h.say(t, "/cancel")
	last, _ := h.rec.Last(userChat)
	if last.Msg.Text != replyNothingCancel {
		t.Fatalf("reply=%q", last.Msg.Text)
	}

	h.say(t, "/new")
	h.say(t, "Algebra")
	h.say(t, "/cancel@bookmarket_bot")
	last, _ = h.rec.Last(userChat)
	if last.Msg.Text != replyCancelled || h.r.form.Active(userChat) {
		t.Fatalf("reply=%q active=%v", last.Msg.Text, h.r.form.Active(userChat))
	}
}

func TestLookup(t *testing.T) {
	h := newHarness(t, Options{})
	cases := []struct {
		text string
		want bool
	}{
		{"  " + views.MenuHelp + " ", true},
		{"/START", true},
		{"/my extra args", true},
		{"/browse@bookmarket_bot", true},
		{"/unknown", false},
		{"help", false},
		{"", false},
	}
	for _, tc := range cases {
		if _, ok := h.r.lookup(tc.text); ok != tc.want {
			t.Fatalf("lookup(%q)=%v want %v", tc.text, ok, tc.want)
		}
	}
}

func TestFeedPaging(t *testing.T) {
	h := newHarness(t, Options{FeedPageSize: 2, PublicChannelURL: "https://t.me/books"})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := h.store.Create(ctx, listing.Fields{UserID: 1, Title: "T", Author: "A", Price: "1", Condition: "New", Description: "D"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	_ = h.store.SetStatus(ctx, 2, listing.StatusRejected)

	h.say(t, views.MenuBrowse)
	sent := h.rec.SentTo(userChat)
	if len(sent) != 3 {
		t.Fatalf("messages=%d want link + 2 briefs", len(sent))
	}
	if sent[0].Msg.Buttons[0][0].URL != "https://t.me/books" {
		t.Fatalf("channel button=%+v", sent[0].Msg.Buttons)
	}
	if !strings.Contains(sent[1].Msg.Text, "ID: 3") || !strings.Contains(sent[2].Msg.Text, "ID: 1") {
		t.Fatalf("feed order: %q / %q", sent[1].Msg.Text, sent[2].Msg.Text)
	}

	h.rec.Reset()
	h.click(t, views.KeyFeed, "2", seller.ID)
	last, _ := h.rec.Last(modChat)
	if last.Msg.Text != replyFeedEnd {
		t.Fatalf("second page reply=%q want end", last.Msg.Text)
	}
}

func TestFeedMoreButton(t *testing.T) {
	h := newHarness(t, Options{FeedPageSize: 1})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = h.store.Create(ctx, listing.Fields{UserID: 1, Title: "T", Author: "A", Price: "1", Condition: "New", Description: "D"})
	}
	h.say(t, "/browse")
	last, _ := h.rec.Last(userChat)
	if len(last.Msg.Buttons) != 1 || last.Msg.Buttons[0][0].Key != views.KeyFeed || last.Msg.Buttons[0][0].Payload != "1" {
		t.Fatalf("more button=%+v", last.Msg.Buttons)
	}
}

func TestMyListingsAndView(t *testing.T) {
	h := newHarness(t, Options{})
	h.submit(t)
	h.rec.Reset()

	h.say(t, views.MenuMine)
	sent := h.rec.SentTo(userChat)
	if len(sent) != 2 || sent[1].Msg.Text != replyAllListings {
		t.Fatalf("my listings=%+v", sent)
	}
	btn := sent[0].Msg.Buttons[0][0]
	if btn.Key != views.KeyView || btn.Payload != "1" {
		t.Fatalf("details button=%+v", btn)
	}

	h.click(t, views.KeyView, "1", seller.ID)
	last, _ := h.rec.Last(modChat)
	if !strings.Contains(last.Msg.Text, "Seller: @reader") {
		t.Fatalf("detail=%q", last.Msg.Text)
	}

	h.click(t, views.KeyView, "99", seller.ID)
	answers := h.rec.Answers()
	if answers[len(answers)-1].Text != answerNotFound {
		t.Fatalf("answers=%+v", answers)
	}
}

func TestCallbackFallbacks(t *testing.T) {
	h := newHarness(t, Options{})
	h.click(t, "bogus", "", adminID)
	h.click(t, views.KeyApprove, "abc", adminID)
	answers := h.rec.Answers()
	if len(answers) != 2 || answers[0].Text != answerUnsupported || answers[1].Text != answerBadPayload {
		t.Fatalf("answers=%+v", answers)
	}
}

func TestPendingCommand(t *testing.T) {
	h := newHarness(t, Options{})
	h.submit(t)
	h.rec.Reset()

	h.say(t, "/pending")
	last, _ := h.rec.Last(userChat)
	if last.Msg.Text != replyModeratorOnly {
		t.Fatalf("non-moderator reply=%q", last.Msg.Text)
	}

	h.rec.Reset()
	err := h.r.HandleMessage(context.Background(), messaging.Inbound{ChatID: adminID, From: messaging.User{ID: adminID}, Text: "/pending"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sent := h.rec.SentTo(adminID)
	if len(sent) != 2 || sent[0].Msg.Buttons[0][0].Key != views.KeyApprove {
		t.Fatalf("pending=%+v", sent)
	}
}

func TestStoreFailureSurfaces(t *testing.T) {
	h := newHarness(t, Options{})
	h.say(t, views.MenuAdd)
	for _, text := range []string{"Algebra", "J. Smith", "200", "Good", "No marks", submission.BtnSkip} {
		h.say(t, text)
	}
	h.store.FailWith = errors.New("db down")
	h.say(t, submission.BtnConfirm)
	if got := h.r.form.Step(userChat); got != submission.StepConfirm {
		t.Fatalf("step=%s want confirm", got)
	}
}
