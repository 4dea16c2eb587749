// Package messagingtest provides a recording Messenger for tests.
package messagingtest

import (
	"context"
	"sync"

	"github.com/m3rciful/bookmarket/internal/messaging"
)

// Sent is one recorded outbound message.
type Sent struct {
	ChatID int64
	Msg    messaging.Message
	Ref    messaging.MessageRef
	// Async is true for Reply, false for Send.
	Async bool
}

// Answered is one recorded callback answer.
type Answered struct {
	CallbackID string
	Text       string
	Alert      bool
}

// Recorder implements messaging.Messenger in memory.
type Recorder struct {
	mu       sync.Mutex
	nextID   int
	sent     []Sent
	answers  []Answered
	cleared  []messaging.MessageRef
	roles    map[int64]messaging.Role
	roleErr  error
	sendErrs map[int64]error
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{
		roles:    make(map[int64]messaging.Role),
		sendErrs: make(map[int64]error),
	}
}

// SetRole makes MemberRole report role for userID.
func (r *Recorder) SetRole(userID int64, role messaging.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[userID] = role
}

// FailRoles makes every MemberRole call fail with err.
func (r *Recorder) FailRoles(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roleErr = err
}

// FailSends makes Send to chatID fail with err. A nil err clears the failure.
func (r *Recorder) FailSends(chatID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.sendErrs, chatID)
		return
	}
	r.sendErrs[chatID] = err
}

func (r *Recorder) Send(_ context.Context, chatID int64, msg messaging.Message) (messaging.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sendErrs[chatID]; err != nil {
		return messaging.MessageRef{}, &messaging.TransportError{Op: "send", Err: err}
	}
	return r.record(chatID, msg, false), nil
}

func (r *Recorder) Reply(_ context.Context, chatID int64, msg messaging.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(chatID, msg, true)
}

func (r *Recorder) record(chatID int64, msg messaging.Message, async bool) messaging.MessageRef {
	r.nextID++
	ref := messaging.MessageRef{ChatID: chatID, MessageID: r.nextID}
	r.sent = append(r.sent, Sent{ChatID: chatID, Msg: msg, Ref: ref, Async: async})
	return ref
}

func (r *Recorder) Answer(_ context.Context, callbackID, text string, alert bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, Answered{CallbackID: callbackID, Text: text, Alert: alert})
	return nil
}

func (r *Recorder) ClearButtons(_ context.Context, ref messaging.MessageRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, ref)
	return nil
}

func (r *Recorder) MemberRole(_ context.Context, _ int64, userID int64) (messaging.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roleErr != nil {
		return "", &messaging.TransportError{Op: "member_role", Err: r.roleErr}
	}
	if role, ok := r.roles[userID]; ok {
		return role, nil
	}
	return messaging.RoleMember, nil
}

// Sent returns every recorded message.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// SentTo returns the messages recorded for chatID.
func (r *Recorder) SentTo(chatID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent message to chatID.
func (r *Recorder) Last(chatID int64) (Sent, bool) {
	msgs := r.SentTo(chatID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// Answers returns recorded callback answers.
func (r *Recorder) Answers() []Answered {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Answered(nil), r.answers...)
}

// Cleared returns messages whose buttons were removed.
func (r *Recorder) Cleared() []messaging.MessageRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messaging.MessageRef(nil), r.cleared...)
}

// Reset forgets everything recorded so far, keeping configured roles and failures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.answers, r.cleared = nil, nil, nil
}

var _ messaging.Messenger = (*Recorder)(nil)
