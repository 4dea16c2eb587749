// Package submission runs the guided form that turns a chat into a pending listing.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/bookmarket/core/logger"
	"github.com/m3rciful/bookmarket/core/telegram/state"
	"github.com/m3rciful/bookmarket/internal/listing"
	"github.com/m3rciful/bookmarket/internal/messaging"
	"github.com/m3rciful/bookmarket/internal/metrics"
	"github.com/m3rciful/bookmarket/internal/views"
)

// Notifier receives every committed listing exactly once.
type Notifier interface {
	SubmitForModeration(ctx context.Context, id int64) error
}

type stepFunc func(ctx context.Context, t *turn) (*Session, error)

// turn is one inbound message applied to one session.
type turn struct {
	in        messaging.Inbound
	text      string
	sess      *Session
	committed int64
}

// Machine keeps one draft per chat and walks it through the form steps.
type Machine struct {
	listings listing.Store
	sessions *state.Store[listing.Fields]
	out      messaging.Messenger
	notify   Notifier
	steps    map[state.State]stepFunc
}

// NewMachine wires the form to its store, transport and moderation hook.
func NewMachine(listings listing.Store, out messaging.Messenger, notify Notifier) *Machine {
	m := &Machine{
		listings: listings,
		sessions: state.NewStore[listing.Fields](),
		out:      out,
		notify:   notify,
	}
	m.steps = map[state.State]stepFunc{
		StepPhotoChoice:  m.photoChoice,
		StepWaitingPhoto: m.waitingPhoto,
		StepConfirm:      m.confirm,
	}
	for st := range textSteps {
		m.steps[st] = m.textField
	}
	return m
}

// Start opens a fresh session for chatID, replacing any draft in progress.
func (m *Machine) Start(ctx context.Context, chatID int64, from messaging.User) {
	_ = m.sessions.Do(chatID, func(*Session) (*Session, error) {
		next := &Session{
			State: StepTitle,
			Data:  listing.Fields{UserID: from.ID, Username: from.Username},
		}
		m.out.Reply(ctx, chatID, promptFor(StepTitle, next.Data))
		return next, nil
	})
	m.track(ctx, "session.started", StepTitle)
}

// Active reports whether chatID is inside the form.
func (m *Machine) Active(chatID int64) bool {
	return m.sessions.Active(chatID)
}

// Step returns the current step of chatID, or StateIdle.
func (m *Machine) Step(chatID int64) state.State {
	sess, _ := m.sessions.Get(chatID)
	return sess.State
}

// Cancel discards the draft of chatID without persisting anything.
func (m *Machine) Cancel(ctx context.Context, chatID int64) bool {
	had := m.sessions.Clear(chatID)
	if had {
		m.track(ctx, "session.discarded", state.StateIdle)
	}
	return had
}

// Handle applies one inbound message to the chat's session. Messages for
// chats without a session are ignored.
func (m *Machine) Handle(ctx context.Context, in messaging.Inbound) error {
	t := &turn{in: in, text: strings.TrimSpace(in.Text)}
	err := m.sessions.Do(in.ChatID, func(cur *Session) (*Session, error) {
		if !cur.Active() {
			return nil, nil
		}
		step, ok := m.steps[cur.State]
		if !ok {
			logger.Warn(ctx, logger.CompSubmission, "session.unknown_step",
				slog.String("status", "skip"),
				slog.String("step", string(cur.State)),
			)
			return nil, nil
		}
		t.sess = cur
		return step(ctx, t)
	})
	metrics.SetSessionsActive(m.sessions.Len())
	if err != nil {
		return err
	}
	if t.committed > 0 {
		m.track(ctx, "session.committed", state.StateIdle)
		m.submit(ctx, t.committed)
	}
	return nil
}

func (m *Machine) textField(ctx context.Context, t *turn) (*Session, error) {
	ts := textSteps[t.sess.State]
	if t.text == "" {
		m.out.Reply(ctx, t.in.ChatID, ts.prompt)
		return t.sess, nil
	}
	ts.set(&t.sess.Data, t.text)
	return m.advance(ctx, t, ts.next), nil
}

func (m *Machine) photoChoice(ctx context.Context, t *turn) (*Session, error) {
	switch t.text {
	case BtnSkip:
		t.sess.Data.PhotoRef = ""
		return m.advance(ctx, t, StepConfirm), nil
	case BtnAddPhoto:
		return m.advance(ctx, t, StepWaitingPhoto), nil
	}
	m.out.Reply(ctx, t.in.ChatID, photoChoicePrompt(repromptPhoto))
	return t.sess, nil
}

func (m *Machine) waitingPhoto(ctx context.Context, t *turn) (*Session, error) {
	photo, ok := t.in.Largest()
	if !ok {
		text := promptWaitingPhoto
		if t.in.Document {
			text = repromptDocument
		}
		m.out.Reply(ctx, t.in.ChatID, messaging.Message{Text: text})
		return t.sess, nil
	}
	t.sess.Data.PhotoRef = photo.FileID
	return m.advance(ctx, t, StepConfirm), nil
}

func (m *Machine) confirm(ctx context.Context, t *turn) (*Session, error) {
	chatID := t.in.ChatID
	switch t.text {
	case BtnCancel:
		m.out.Reply(ctx, chatID, views.WithMenu(replyCancelled))
		logger.Debug(ctx, logger.CompSubmission, "session.cancelled", slog.String("status", "cancelled"))
		return nil, nil
	case BtnConfirm:
	default:
		m.out.Reply(ctx, chatID, confirmPrompt(repromptConfirm))
		return t.sess, nil
	}

	id, err := m.listings.Create(ctx, t.sess.Data)
	metrics.IncListingSubmitted(metrics.Result(err))
	switch {
	case err == nil:
	case errors.Is(err, listing.ErrIncomplete):
		logger.Warn(ctx, logger.CompSubmission, "listing.create",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		m.out.Reply(ctx, chatID, views.WithMenu(replyCommitBroken))
		return nil, nil
	default:
		logger.Error(ctx, logger.CompSubmission, "listing.create",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		m.out.Reply(ctx, chatID, confirmPrompt(replyCommitFailed))
		return t.sess, nil
	}

	logger.Info(ctx, logger.CompSubmission, "listing.create",
		slog.String("status", "ok"),
		slog.Int64("listing_id", id),
		slog.Bool("photo", t.sess.Data.PhotoRef != ""),
	)
	m.out.Reply(ctx, chatID, views.WithMenu(fmt.Sprintf(replyCreated, id)))
	t.committed = id
	return nil, nil
}

// submit hands a committed listing to moderation. A failure leaves the listing
// pending without a card until the outbox redelivers it.
func (m *Machine) submit(ctx context.Context, id int64) {
	if m.notify == nil {
		return
	}
	if err := m.notify.SubmitForModeration(ctx, id); err != nil {
		logger.Error(ctx, logger.CompSubmission, "listing.orphaned",
			slog.String("status", "fail"),
			slog.Int64("listing_id", id),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func (m *Machine) advance(ctx context.Context, t *turn, next state.State) *Session {
	t.sess.State = next
	m.out.Reply(ctx, t.in.ChatID, promptFor(next, t.sess.Data))
	logger.Debug(ctx, logger.CompSubmission, "session.step", slog.String("step", string(next)))
	return t.sess
}

func (m *Machine) track(ctx context.Context, event string, st state.State) {
	n := m.sessions.Len()
	metrics.SetSessionsActive(n)
	logger.Debug(ctx, logger.CompSubmission, event,
		slog.String("step", string(st)),
		slog.Int("sessions", n),
	)
}

func previewPrompt(f listing.Fields) messaging.Message {
	msg := views.Preview(f)
	msg.Keyboard = [][]string{{BtnConfirm, BtnCancel}}
	return msg
}
