package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/m3rciful/bookmarket/core/logger"
)

// OutboxOptions tune redelivery of undelivered moderation cards.
type OutboxOptions struct {
	Interval time.Duration
	Grace    time.Duration
	Batch    int
}

// Outbox periodically re-sends cards for pending listings that never reached
// the moderation chat.
type Outbox struct {
	svc       *Service
	opts      OutboxOptions
	scheduler gocron.Scheduler
}

func NewOutbox(svc *Service, opts OutboxOptions) *Outbox {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Batch <= 0 {
		opts.Batch = 20
	}
	return &Outbox{svc: svc, opts: opts}
}

// Start schedules the redelivery job, first run immediately. Runs never overlap.
func (o *Outbox) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("outbox scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(o.opts.Interval),
		gocron.NewTask(o.tick, context.WithoutCancel(ctx)),
		gocron.WithName("moderation-outbox"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("outbox job: %w", err)
	}
	s.Start()
	o.scheduler = s
	logger.Info(ctx, logger.CompOutbox, "start",
		slog.Duration("interval", o.opts.Interval),
		slog.Duration("grace", o.opts.Grace),
		slog.Int("batch", o.opts.Batch),
	)
	return nil
}

// Stop waits for a running job and shuts the scheduler down.
func (o *Outbox) Stop() error {
	if o.scheduler == nil {
		return nil
	}
	err := o.scheduler.Shutdown()
	o.scheduler = nil
	return err
}

// RunOnce performs one redelivery pass.
func (o *Outbox) RunOnce(ctx context.Context) (int, error) {
	cutoff := o.svc.now().UTC().Add(-o.opts.Grace)
	return o.svc.RedeliverPending(ctx, cutoff, o.opts.Batch)
}

func (o *Outbox) tick(ctx context.Context) {
	start := time.Now()
	n, err := o.RunOnce(ctx)
	if err != nil {
		logger.Warn(ctx, logger.CompOutbox, "redeliver",
			slog.String("status", "fail"),
			slog.Int("delivered", n),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.Duration("duration", logger.Took(start)),
		)
		return
	}
	if n > 0 {
		logger.Info(ctx, logger.CompOutbox, "redeliver",
			slog.String("status", "ok"),
			slog.Int("delivered", n),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}
