package bot

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/bookmarket/core/logger"
	tghelpers "github.com/m3rciful/bookmarket/core/telegram/helpers"
	"github.com/m3rciful/bookmarket/core/telegram/keyboard"
	"github.com/m3rciful/bookmarket/core/telegram/netutil"
	tgsender "github.com/m3rciful/bookmarket/core/telegram/sender"
	"github.com/m3rciful/bookmarket/internal/messaging"

	tele "gopkg.in/telebot.v4"
)

// MessengerOptions tune synchronous retries.
type MessengerOptions struct {
	Attempts int
	Backoff  time.Duration
}

// Messenger implements messaging.Messenger on top of telebot. Send retries
// transient failures inline; Reply goes through the dispatcher, ordered per chat.
type Messenger struct {
	bot        *tele.Bot
	dispatcher *tgsender.Dispatcher
	opts       MessengerOptions
}

func NewMessenger(bot *tele.Bot, dispatcher *tgsender.Dispatcher, opts MessengerOptions) *Messenger {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Messenger{bot: bot, dispatcher: dispatcher, opts: opts}
}

func (m *Messenger) Send(ctx context.Context, chatID int64, msg messaging.Message) (messaging.MessageRef, error) {
	var sent *tele.Message
	err := netutil.Retry(ctx, m.opts.Attempts, m.opts.Backoff, func() error {
		// telebot rewrites button data in place, so render per attempt.
		what, opts := render(msg)
		var err error
		sent, err = m.bot.Send(tele.ChatID(chatID), what, opts)
		return err
	})
	if err != nil {
		return messaging.MessageRef{}, &messaging.TransportError{Op: endpointFor(msg), Err: err}
	}
	return messaging.MessageRef{ChatID: chatID, MessageID: sent.ID}, nil
}

func (m *Messenger) Reply(ctx context.Context, chatID int64, msg messaging.Message) {
	err := m.dispatcher.Enqueue(tghelpers.Detach(ctx), chatID, "reply", endpointFor(msg), func() error {
		what, opts := render(msg)
		_, err := m.bot.Send(tele.ChatID(chatID), what, opts)
		return err
	})
	if err != nil {
		logger.Warn(ctx, logger.CompTGSender, "enqueue",
			slog.String("status", "fail"),
			slog.String("endpoint", endpointFor(msg)),
			slog.String("err", err.Error()),
		)
	}
}

func (m *Messenger) Answer(_ context.Context, callbackID, text string, alert bool) error {
	err := m.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
	if err != nil {
		return &messaging.TransportError{Op: "answerCallbackQuery", Err: err}
	}
	return nil
}

func (m *Messenger) ClearButtons(ctx context.Context, ref messaging.MessageRef) error {
	stored := tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
	err := netutil.Retry(ctx, m.opts.Attempts, m.opts.Backoff, func() error {
		_, err := m.bot.EditReplyMarkup(stored, nil)
		return err
	})
	if err != nil {
		return &messaging.TransportError{Op: "editMessageReplyMarkup", Err: err}
	}
	return nil
}

func (m *Messenger) MemberRole(ctx context.Context, chatID, userID int64) (messaging.Role, error) {
	var member *tele.ChatMember
	err := netutil.Retry(ctx, m.opts.Attempts, m.opts.Backoff, func() error {
		var err error
		member, err = m.bot.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
		return err
	})
	if err != nil {
		return "", &messaging.TransportError{Op: "getChatMember", Err: err}
	}
	return messaging.Role(member.Role), nil
}

// render converts a transport-neutral message into telebot send arguments.
func render(msg messaging.Message) (any, *tele.SendOptions) {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup(msg)}
	if msg.PhotoRef != "" {
		return &tele.Photo{File: tele.File{FileID: msg.PhotoRef}, Caption: msg.Text}, opts
	}
	return msg.Text, opts
}

func markup(msg messaging.Message) *tele.ReplyMarkup {
	switch {
	case len(msg.Buttons) > 0:
		rows := make([][]keyboard.InlineBtn, 0, len(msg.Buttons))
		for _, row := range msg.Buttons {
			btns := make([]keyboard.InlineBtn, 0, len(row))
			for _, b := range row {
				btns = append(btns, keyboard.InlineBtn{Text: b.Text, Unique: b.Key, Data: b.Payload, URL: b.URL})
			}
			rows = append(rows, btns)
		}
		return keyboard.InlineButtonsRows(rows...)
	case len(msg.Keyboard) > 0 && msg.OneTimeKeyboard:
		return keyboard.OneTimeReplyButtons(msg.Keyboard...)
	case len(msg.Keyboard) > 0:
		return keyboard.ReplyButtons(msg.Keyboard...)
	case msg.RemoveKeyboard:
		return keyboard.RemoveKeyboard()
	}
	return nil
}

func endpointFor(msg messaging.Message) string {
	if msg.PhotoRef != "" {
		return "sendPhoto"
	}
	return "sendMessage"
}

// inboundFrom extracts the transport-neutral view of a message update.
func inboundFrom(c tele.Context) messaging.Inbound {
	var in messaging.Inbound
	if chat := c.Chat(); chat != nil {
		in.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		in.From = messaging.User{ID: u.ID, Username: u.Username}
	}
	msg := c.Message()
	if msg == nil {
		return in
	}
	in.Text = msg.Text
	if msg.Photo != nil {
		in.Photos = append(in.Photos, messaging.PhotoSize{
			FileID: msg.Photo.FileID,
			Width:  msg.Photo.Width,
			Height: msg.Photo.Height,
		})
	}
	in.Document = msg.Document != nil
	return in
}

// callbackFrom extracts the transport-neutral view of a button press.
func callbackFrom(c tele.Context, key, payload string) messaging.Callback {
	out := messaging.Callback{Key: key, Payload: payload}
	cb := c.Callback()
	if cb == nil {
		return out
	}
	out.ID = cb.ID
	if cb.Sender != nil {
		out.From = messaging.User{ID: cb.Sender.ID, Username: cb.Sender.Username}
	}
	if cb.Message != nil && cb.Message.Chat != nil {
		out.ChatID = cb.Message.Chat.ID
		out.Message = messaging.MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.ID}
	}
	return out
}

var _ messaging.Messenger = (*Messenger)(nil)
