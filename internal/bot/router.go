// Package bot routes Telegram updates to the submission form and the
// moderation lifecycle, and wires the application together.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/bookmarket/core/logger"
	"github.com/m3rciful/bookmarket/core/telegram/callbacks"
	"github.com/m3rciful/bookmarket/internal/listing"
	"github.com/m3rciful/bookmarket/internal/messaging"
	"github.com/m3rciful/bookmarket/internal/moderation"
	"github.com/m3rciful/bookmarket/internal/submission"
	"github.com/m3rciful/bookmarket/internal/views"
)

// Slash commands understood by the router.
const (
	CmdStart   = "/start"
	CmdHelp    = "/help"
	CmdNew     = "/new"
	CmdMy      = "/my"
	CmdBrowse  = "/browse"
	CmdCancel  = "/cancel"
	CmdPending = "/pending"
)

const (
	replyUnknown       = "I didn't understand that. Please use the menu below."
	replyNoListings    = "You have no listings yet."
	replyAllListings   = "These are all your listings."
	replyChannel       = "All approved listings are in our channel:"
	replyFeedEmpty     = "No listings yet."
	replyFeedEnd       = "No more listings."
	replyFeedMore      = "Want to see more?"
	replyCancelled     = "Cancelled. You can start again from the menu."
	replyNothingCancel = "There is nothing to cancel."
	replyNoPending     = "No listings are waiting for moderation."
	replyModeratorOnly = "This command is for moderators."
	replyStoreFailed   = "Something went wrong, please try again later."
	replyTooFast       = "Too fast, give me a second and send that again."
	answerNotFound     = "Listing not found."
	answerBadPayload   = "Invalid button."
	answerUnsupported  = "Unsupported action"
	btnOpenChannel     = "Open channel"
	btnMore            = "More"
)

const pendingLimit = 20

// Options configures browsing.
type Options struct {
	PublicChannelURL string
	FeedPageSize     int
}

// action runs a menu phrase or command. diverted reports whether a
// submission session was discarded to run it.
type action func(ctx context.Context, in messaging.Inbound, diverted bool) error

// Router dispatches inbound messages and button presses.
type Router struct {
	listings listing.Store
	form     *submission.Machine
	mod      *moderation.Service
	auth     *moderation.Authorizer
	out      messaging.Messenger
	opts     Options
	actions  map[string]action
}

func NewRouter(listings listing.Store, form *submission.Machine, mod *moderation.Service, auth *moderation.Authorizer, out messaging.Messenger, opts Options) *Router {
	if opts.FeedPageSize <= 0 {
		opts.FeedPageSize = 5
	}
	r := &Router{
		listings: listings,
		form:     form,
		mod:      mod,
		auth:     auth,
		out:      out,
		opts:     opts,
	}
	r.actions = map[string]action{
		CmdStart:         r.start,
		CmdHelp:          r.help,
		views.MenuHelp:   r.help,
		CmdNew:           r.add,
		views.MenuAdd:    r.add,
		CmdMy:            r.mine,
		views.MenuMine:   r.mine,
		CmdBrowse:        r.browse,
		views.MenuBrowse: r.browse,
		CmdCancel:        r.cancel,
		CmdPending:       r.pending,
	}
	return r
}

// HandleMessage routes one inbound message. Reserved phrases and commands
// win over an active session, which is discarded first.
func (r *Router) HandleMessage(ctx context.Context, in messaging.Inbound) error {
	if act, ok := r.lookup(in.Text); ok {
		diverted := r.form.Cancel(ctx, in.ChatID)
		if diverted {
			logger.Info(ctx, logger.CompSubmission, "session.diverted",
				slog.String("status", "cancelled"),
				slog.String("input", logger.SanitizeLimit(strings.TrimSpace(in.Text), 32)),
			)
		}
		return act(ctx, in, diverted)
	}
	if r.form.Active(in.ChatID) {
		return r.form.Handle(ctx, in)
	}
	r.out.Reply(ctx, in.ChatID, views.WithMenu(replyUnknown))
	return nil
}

// lookup matches a menu phrase or a slash command ("/my@bookbot args" counts as /my).
func (r *Router) lookup(text string) (action, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(strings.Fields(text)[0], "@")
		text = strings.ToLower(cmd)
	}
	act, ok := r.actions[text]
	return act, ok
}

// HandleCallback routes one inline button press by its key.
func (r *Router) HandleCallback(ctx context.Context, cb messaging.Callback) error {
	switch cb.Key {
	case views.KeyApprove, views.KeyReject:
		id, ok := r.payloadID(ctx, cb)
		if !ok {
			return nil
		}
		_, err := r.mod.HandleDecision(ctx, moderation.Decision{
			ListingID:  id,
			Verdict:    moderation.Verdict(cb.Key),
			Actor:      cb.From,
			CallbackID: cb.ID,
			Card:       cb.Message,
		})
		return err
	case views.KeyView:
		id, ok := r.payloadID(ctx, cb)
		if !ok {
			return nil
		}
		return r.view(ctx, cb, id)
	case views.KeyFeed:
		offset, err := strconv.Atoi(strings.TrimSpace(cb.Payload))
		if err != nil || offset < 0 {
			r.answer(ctx, cb.ID, answerBadPayload, false)
			return nil
		}
		r.answer(ctx, cb.ID, "", false)
		return r.feed(ctx, cb.ChatID, offset)
	}
	r.answer(ctx, cb.ID, answerUnsupported, false)
	return nil
}

func (r *Router) payloadID(ctx context.Context, cb messaging.Callback) (int64, bool) {
	id, err := callbacks.ParseInt64(cb.Payload)
	if err != nil || id <= 0 {
		r.answer(ctx, cb.ID, answerBadPayload, false)
		return 0, false
	}
	return id, true
}

func (r *Router) view(ctx context.Context, cb messaging.Callback, id int64) error {
	l, err := r.listings.Get(ctx, id)
	if errors.Is(err, listing.ErrNotFound) {
		r.answer(ctx, cb.ID, answerNotFound, true)
		return nil
	}
	if err != nil {
		r.answer(ctx, cb.ID, replyStoreFailed, true)
		return err
	}
	r.answer(ctx, cb.ID, "", false)
	r.out.Reply(ctx, cb.ChatID, views.Detail(l))
	return nil
}

func (r *Router) start(ctx context.Context, in messaging.Inbound, _ bool) error {
	r.out.Reply(ctx, in.ChatID, views.WithMenu(views.WelcomeText))
	return nil
}

func (r *Router) help(ctx context.Context, in messaging.Inbound, _ bool) error {
	r.out.Reply(ctx, in.ChatID, views.WithMenu(views.HelpText))
	return nil
}

func (r *Router) add(ctx context.Context, in messaging.Inbound, _ bool) error {
	r.form.Start(ctx, in.ChatID, in.From)
	return nil
}

func (r *Router) cancel(ctx context.Context, in messaging.Inbound, diverted bool) error {
	text := replyNothingCancel
	if diverted {
		text = replyCancelled
	}
	r.out.Reply(ctx, in.ChatID, views.WithMenu(text))
	return nil
}

func (r *Router) mine(ctx context.Context, in messaging.Inbound, _ bool) error {
	rows, err := r.listings.ListByUser(ctx, in.From.ID)
	if err != nil {
		r.out.Reply(ctx, in.ChatID, views.WithMenu(replyStoreFailed))
		return err
	}
	if len(rows) == 0 {
		r.out.Reply(ctx, in.ChatID, views.WithMenu(replyNoListings))
		return nil
	}
	for _, l := range rows {
		r.out.Reply(ctx, in.ChatID, views.Brief(l))
	}
	r.out.Reply(ctx, in.ChatID, views.WithMenu(replyAllListings))
	return nil
}

func (r *Router) browse(ctx context.Context, in messaging.Inbound, _ bool) error {
	if r.opts.PublicChannelURL != "" {
		r.out.Reply(ctx, in.ChatID, messaging.Message{
			Text:    replyChannel,
			Buttons: [][]messaging.Button{{{Text: btnOpenChannel, URL: r.opts.PublicChannelURL}}},
		})
	}
	return r.feed(ctx, in.ChatID, 0)
}

// feed sends one page of the public feed starting at offset.
func (r *Router) feed(ctx context.Context, chatID int64, offset int) error {
	size := r.opts.FeedPageSize
	rows, err := r.listings.ListByStatus(ctx, listing.DefaultFeedStatuses, size+1, offset)
	if err != nil {
		r.out.Reply(ctx, chatID, views.WithMenu(replyStoreFailed))
		return err
	}
	if len(rows) == 0 {
		text := replyFeedEnd
		if offset == 0 {
			text = replyFeedEmpty
		}
		r.out.Reply(ctx, chatID, views.WithMenu(text))
		return nil
	}
	more := len(rows) > size
	if more {
		rows = rows[:size]
	}
	for _, l := range rows {
		r.out.Reply(ctx, chatID, views.Brief(l))
	}
	if more {
		r.out.Reply(ctx, chatID, messaging.Message{
			Text: replyFeedMore,
			Buttons: [][]messaging.Button{{
				{Text: btnMore, Key: views.KeyFeed, Payload: strconv.Itoa(offset + size)},
			}},
		})
	}
	return nil
}

// pending re-sends moderation cards for every pending listing to a moderator's chat.
func (r *Router) pending(ctx context.Context, in messaging.Inbound, _ bool) error {
	if err := r.auth.Authorize(ctx, in.From.ID); err != nil {
		r.out.Reply(ctx, in.ChatID, views.WithMenu(replyModeratorOnly))
		return nil
	}
	rows, err := r.listings.ListByStatus(ctx, []listing.Status{listing.StatusPending}, pendingLimit, 0)
	if err != nil {
		r.out.Reply(ctx, in.ChatID, views.WithMenu(replyStoreFailed))
		return err
	}
	if len(rows) == 0 {
		r.out.Reply(ctx, in.ChatID, views.WithMenu(replyNoPending))
		return nil
	}
	for _, l := range rows {
		r.out.Reply(ctx, in.ChatID, views.ModerationCard(l))
	}
	r.out.Reply(ctx, in.ChatID, views.WithMenu(fmt.Sprintf("Pending listings: %d.", len(rows))))
	return nil
}

func (r *Router) answer(ctx context.Context, callbackID, text string, alert bool) {
	if callbackID == "" {
		return
	}
	if err := r.out.Answer(ctx, callbackID, text, alert); err != nil {
		logger.Warn(ctx, logger.CompTG, "callback.answer",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
