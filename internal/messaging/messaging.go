// Package messaging is the transport contract the bot's services speak.
// It knows nothing about a concrete bot framework.
package messaging

import (
	"context"
	"fmt"
)

// Button is an inline action under a message. URL buttons open a link;
// the others carry a callback key and payload.
type Button struct {
	Text    string
	Key     string
	Payload string
	URL     string
}

// Message is an outbound text or photo message. Text is HTML.
type Message struct {
	Text     string
	PhotoRef string
	Buttons  [][]Button
	// Keyboard replaces the user's reply keyboard with these rows.
	Keyboard        [][]string
	OneTimeKeyboard bool
	RemoveKeyboard  bool
}

// MessageRef identifies a message that was already sent.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// User is the sender of an inbound update.
type User struct {
	ID       int64
	Username string
}

// PhotoSize is one resolution of an uploaded image.
type PhotoSize struct {
	FileID string
	Width  int
	Height int
}

// Inbound is a message a user sent to the bot.
type Inbound struct {
	ChatID   int64
	From     User
	Text     string
	Photos   []PhotoSize
	Document bool
}

// Largest returns the highest-resolution photo variant.
func (in Inbound) Largest() (PhotoSize, bool) {
	var best PhotoSize
	found := false
	for _, p := range in.Photos {
		if !found || p.Width*p.Height > best.Width*best.Height {
			best, found = p, true
		}
	}
	return best, found
}

// Callback is an inline button press.
type Callback struct {
	ID      string
	ChatID  int64
	Message MessageRef
	From    User
	Key     string
	Payload string
}

// Role is a chat membership role.
type Role string

const (
	RoleOwner         Role = "creator"
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
)

// Privileged reports whether the role may moderate.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdministrator
}

// Messenger sends messages and queries chats.
type Messenger interface {
	// Send delivers synchronously and returns where the message landed.
	Send(ctx context.Context, chatID int64, msg Message) (MessageRef, error)
	// Reply queues a best-effort message to chatID. Replies to the same chat keep their order.
	Reply(ctx context.Context, chatID int64, msg Message)
	// Answer acknowledges a button press, optionally as an alert.
	Answer(ctx context.Context, callbackID, text string, alert bool) error
	// ClearButtons removes the inline keyboard of a sent message.
	ClearButtons(ctx context.Context, ref MessageRef) error
	// MemberRole looks up userID's role in chatID.
	MemberRole(ctx context.Context, chatID, userID int64) (Role, error)
}

// TransportError wraps a failure talking to the messaging service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Code is picked up by the router summary logs.
func (e *TransportError) Code() string { return "TRANSPORT" }
