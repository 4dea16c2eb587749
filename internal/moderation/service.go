// Package moderation sends new listings to moderators, applies their
// decisions and publishes approved listings.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/bookmarket/core/logger"
	"github.com/m3rciful/bookmarket/internal/listing"
	"github.com/m3rciful/bookmarket/internal/messaging"
	"github.com/m3rciful/bookmarket/internal/metrics"
	"github.com/m3rciful/bookmarket/internal/views"
)

// Verdict is a moderator's choice on a card.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// Target returns the status a verdict moves a pending listing to.
func (v Verdict) Target() (listing.Status, bool) {
	switch v {
	case VerdictApprove:
		return listing.StatusApproved, true
	case VerdictReject:
		return listing.StatusRejected, true
	}
	return "", false
}

// Outcome is the result of HandleDecision.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeDenied   Outcome = "denied"
	OutcomeStale    Outcome = "stale"
	OutcomeNotFound Outcome = "not_found"
)

// Decision is one click on a moderation card.
type Decision struct {
	ListingID  int64
	Verdict    Verdict
	Actor      messaging.User
	CallbackID string
	// Card is the moderation message that carried the buttons.
	Card messaging.MessageRef
}

// Options holds the chats the service posts to.
type Options struct {
	ModerationChatID int64
	PublicChannelID  int64
}

const (
	answerDenied   = "You are not allowed to moderate listings."
	answerNotFound = "Listing not found."
	answerStale    = "Already decided: %s."
	answerFailed   = "Could not update the listing, try again."
	answerApproved = "Approved and published."
	answerRejected = "Rejected."
	sourceSubmit   = "submit"
	sourceOutbox   = "outbox"
)

// Service is the moderation lifecycle.
type Service struct {
	listings listing.Store
	out      messaging.Messenger
	auth     *Authorizer
	opts     Options
	now      func() time.Time
}

func NewService(listings listing.Store, out messaging.Messenger, auth *Authorizer, opts Options) *Service {
	return &Service{
		listings: listings,
		out:      out,
		auth:     auth,
		opts:     opts,
		now:      time.Now,
	}
}

// SubmitForModeration posts a card for listing id to the moderation chat.
// Every call posts a new card.
func (s *Service) SubmitForModeration(ctx context.Context, id int64) error {
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		metrics.IncModerationCard(sourceSubmit, "error")
		return fmt.Errorf("load listing %d: %w", id, err)
	}
	return s.deliver(ctx, l, sourceSubmit)
}

// deliver sends the card and records the delivery.
func (s *Service) deliver(ctx context.Context, l listing.Listing, source string) error {
	start := time.Now()
	ref, err := s.out.Send(ctx, s.opts.ModerationChatID, views.ModerationCard(l))
	metrics.IncModerationCard(source, metrics.Result(err))
	if err != nil {
		logger.Error(ctx, logger.CompModeration, "card.send",
			slog.String("status", "fail"),
			slog.String("source", source),
			slog.Int64("listing_id", l.ID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return err
	}
	if err := s.listings.MarkNotified(ctx, l.ID, s.now()); err != nil {
		// The card is out; a retry would only duplicate it.
		logger.Warn(ctx, logger.CompModeration, "card.mark_notified",
			slog.String("status", "fail"),
			slog.Int64("listing_id", l.ID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	logger.Info(ctx, logger.CompModeration, "card.send",
		slog.String("status", "ok"),
		slog.String("source", source),
		slog.Int64("listing_id", l.ID),
		slog.Int("message_id", ref.MessageID),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// HandleDecision authorizes the actor, applies the verdict once and reports it.
func (s *Service) HandleDecision(ctx context.Context, d Decision) (Outcome, error) {
	start := time.Now()
	outcome, err := s.decide(ctx, d)

	label := string(outcome)
	if err != nil {
		label = "error"
	}
	metrics.IncModerationDecision(string(d.Verdict), label)

	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("outcome", string(outcome)),
		slog.String("verdict", string(d.Verdict)),
		slog.Int64("listing_id", d.ListingID),
		slog.Int64("actor_id", d.Actor.ID),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs[0] = slog.String("status", "fail")
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		logger.Error(ctx, logger.CompModeration, "decision", attrs...)
		return outcome, err
	}
	logger.Info(ctx, logger.CompModeration, "decision", attrs...)
	return outcome, nil
}

func (s *Service) decide(ctx context.Context, d Decision) (Outcome, error) {
	target, ok := d.Verdict.Target()
	if !ok {
		return "", fmt.Errorf("unknown verdict %q", d.Verdict)
	}
	if err := s.auth.Authorize(ctx, d.Actor.ID); err != nil {
		s.answer(ctx, d.CallbackID, answerDenied, true)
		return OutcomeDenied, nil
	}

	err := s.listings.Transition(ctx, d.ListingID, listing.StatusPending, target)
	switch {
	case errors.Is(err, listing.ErrNotFound):
		s.answer(ctx, d.CallbackID, answerNotFound, true)
		return OutcomeNotFound, nil
	case errors.Is(err, listing.ErrInvalidTransition):
		status := "unknown"
		if l, gerr := s.listings.Get(ctx, d.ListingID); gerr == nil {
			status = string(l.Status)
		}
		s.answer(ctx, d.CallbackID, fmt.Sprintf(answerStale, status), false)
		s.clearButtons(ctx, d.Card)
		return OutcomeStale, nil
	case err != nil:
		s.answer(ctx, d.CallbackID, answerFailed, true)
		return "", err
	}

	if target == listing.StatusApproved {
		s.answer(ctx, d.CallbackID, answerApproved, false)
		s.publish(ctx, d.ListingID)
	} else {
		s.answer(ctx, d.CallbackID, answerRejected, false)
	}
	s.clearButtons(ctx, d.Card)

	reportChat := d.Card.ChatID
	if reportChat == 0 {
		reportChat = s.opts.ModerationChatID
	}
	s.out.Reply(ctx, reportChat, messaging.Message{Text: views.StatusReport(d.ListingID, target)})
	return OutcomeApplied, nil
}

// publish posts an approved listing to the public channel. Failures are logged
// and counted; the listing stays approved.
func (s *Service) publish(ctx context.Context, id int64) {
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		metrics.IncPublication("error")
		logger.Warn(ctx, logger.CompModeration, "publish",
			slog.String("status", "fail"),
			slog.Int64("listing_id", id),
			slog.String("err", err.Error()),
		)
		return
	}
	_, err = s.out.Send(ctx, s.opts.PublicChannelID, views.PublicPost(l))
	metrics.IncPublication(metrics.Result(err))
	if err != nil {
		logger.Error(ctx, logger.CompModeration, "publish",
			slog.String("status", "fail"),
			slog.Int64("listing_id", id),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	logger.Info(ctx, logger.CompModeration, "publish",
		slog.String("status", "ok"),
		slog.Int64("listing_id", id),
	)
}

// RedeliverPending sends cards for pending listings created before the cutoff
// whose card never went out. It returns how many cards were delivered.
func (s *Service) RedeliverPending(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	rows, err := s.listings.ListUnnotified(ctx, createdBefore, limit)
	if err != nil {
		return 0, err
	}
	var (
		delivered int
		errs      []error
	)
	for _, l := range rows {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.deliver(ctx, l, sourceOutbox); err != nil {
			errs = append(errs, fmt.Errorf("listing %d: %w", l.ID, err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

func (s *Service) answer(ctx context.Context, callbackID, text string, alert bool) {
	if callbackID == "" {
		return
	}
	if err := s.out.Answer(ctx, callbackID, text, alert); err != nil {
		logger.Warn(ctx, logger.CompModeration, "callback.answer",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func (s *Service) clearButtons(ctx context.Context, card messaging.MessageRef) {
	if card.MessageID == 0 {
		return
	}
	if err := s.out.ClearButtons(ctx, card); err != nil {
		logger.Warn(ctx, logger.CompModeration, "card.clear_buttons",
			slog.String("status", "fail"),
			slog.Int("message_id", card.MessageID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
