package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/bookmarket/core/bootstrap"
	"github.com/m3rciful/bookmarket/core/buildinfo"
	"github.com/m3rciful/bookmarket/core/logger"
	coretelegram "github.com/m3rciful/bookmarket/core/telegram"
	"github.com/m3rciful/bookmarket/core/telegram/callbacks"
	"github.com/m3rciful/bookmarket/core/telegram/commands"
	tghelpers "github.com/m3rciful/bookmarket/core/telegram/helpers"
	"github.com/m3rciful/bookmarket/core/telegram/router"
	tgsender "github.com/m3rciful/bookmarket/core/telegram/sender"
	"github.com/m3rciful/bookmarket/internal/config"
	"github.com/m3rciful/bookmarket/internal/listing"
	"github.com/m3rciful/bookmarket/internal/metrics"
	"github.com/m3rciful/bookmarket/internal/moderation"
	"github.com/m3rciful/bookmarket/internal/submission"
	"github.com/m3rciful/bookmarket/internal/views"
	"github.com/m3rciful/bookmarket/migrations"

	tele "gopkg.in/telebot.v4"
)

// App owns the infrastructure created at bootstrap and builds the bot runtime.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	listings listing.Store

	outbox      *moderation.Outbox
	stopMetrics context.CancelFunc
	metricsDone chan error
}

// Bootstrap initializes logging, the database and migrations.
func Bootstrap(cfg *config.Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	logger.Info(context.Background(), logger.CompDB, "ready",
		slog.String("dialect", cfg.Database.Dialect()),
		slog.String("target", cfg.Database.Describe()),
	)
	return New(cfg, res.DB, listing.NewSQLStore(res.DB)), nil
}

// New assembles an App from already initialized parts. db may be nil.
func New(cfg *config.Config, db *sqlx.DB, listings listing.Store) *App {
	return &App{cfg: cfg, db: db, listings: listings}
}

// TelegramRunOptions builds the runtime options: routes, middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if a.cfg == nil {
		return coretelegram.RunOptions{}, errors.New("bot: nil config")
	}
	core := a.cfg.CoreConfig()
	reg := coretelegram.NewRegistry()

	return coretelegram.RunOptions{
		Config:   core,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			Workers:    4,
			MaxRetries: 2,
		},
		Middlewares: coretelegram.DefaultMiddlewares(core, onRateLimited),
		Setup: func(ctx context.Context, rt coretelegram.Runtime) ([]coretelegram.Route, error) {
			return a.setup(ctx, rt, reg)
		},
		OnStart: a.start,
		OnStop:  a.stop,
	}, nil
}

// setup wires the services once the bot client exists.
func (a *App) setup(ctx context.Context, rt coretelegram.Runtime, reg *coretelegram.Registry) ([]coretelegram.Route, error) {
	market := a.cfg.Market
	out := NewMessenger(rt.Bot, rt.Dispatcher, MessengerOptions{})
	auth := moderation.NewAuthorizer(market.ModerationChatID, market.Admins(), out)
	mod := moderation.NewService(a.listings, out, auth, moderation.Options{
		ModerationChatID: market.ModerationChatID,
		PublicChannelID:  market.PublicChannelID,
	})
	form := submission.NewMachine(a.listings, out, mod)
	r := NewRouter(a.listings, form, mod, auth, out, Options{
		PublicChannelURL: market.PublicChannelURL,
		FeedPageSize:     market.FeedPageSize,
	})
	a.outbox = moderation.NewOutbox(mod, moderation.OutboxOptions{
		Interval: a.cfg.Outbox.Interval,
		Grace:    a.cfg.Outbox.Grace,
		Batch:    a.cfg.Outbox.Batch,
	})

	if err := register(reg, r); err != nil {
		return nil, err
	}

	routes := []coretelegram.Route{router.CallbackRoute(reg, router.CallbackOptions{})}
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		Authorize: auth.Allowed,
		OnReject: func(c tele.Context) error {
			return c.Send(replyModeratorOnly)
		},
	})...)
	routes = append(routes, router.MessageRoutes(router.MessageOptions{
		Handle: func(c tele.Context) error {
			return r.HandleMessage(tghelpers.BuildContext(c), inboundFrom(c))
		},
	})...)

	logger.Info(ctx, logger.CompTGWire, "setup",
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes, nil
}

// onRateLimited tells the user the update was dropped. A throttled button
// press still gets answered so the client stops its spinner.
func onRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: replyTooFast})
	}
	return c.Send(replyTooFast)
}

var commandMenu = []struct {
	name        string
	description string
	adminOnly   bool
}{
	{CmdStart, "Start the bot", false},
	{CmdNew, "Add a listing", false},
	{CmdBrowse, "Browse listings", false},
	{CmdMy, "My listings", false},
	{CmdCancel, "Cancel the current listing", false},
	{CmdHelp, "Help", false},
	{CmdPending, "Listings waiting for moderation", true},
}

// register binds commands and callback keys to the router.
func register(reg *coretelegram.Registry, r *Router) error {
	onCommand := func(c tele.Context) error {
		return r.HandleMessage(tghelpers.BuildContext(c), inboundFrom(c))
	}
	for _, cmd := range commandMenu {
		reg.RegisterCommand(cmd.name, commands.Command{
			Handler:     onCommand,
			Description: cmd.description,
			AdminOnly:   cmd.adminOnly,
		})
	}

	onCallback := func(c tele.Context) error {
		key, payload := callbacks.Parse(c.Callback())
		return r.HandleCallback(tghelpers.BuildContext(c), callbackFrom(c, key, payload))
	}
	for _, key := range []string{views.KeyApprove, views.KeyReject, views.KeyView, views.KeyFeed} {
		if err := reg.RegisterCallback(key, onCallback); err != nil {
			return fmt.Errorf("register callback %s: %w", key, err)
		}
	}
	// Unknown keys still reach the router so the answer and the log stay in one place.
	reg.SetCallbackNotFound(onCallback)
	return nil
}

func (a *App) start(ctx context.Context, _ coretelegram.Runtime) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(buildinfo.Version, buildinfo.Commit)
	if addr := a.cfg.Metrics.Listen; addr != "" {
		mctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.stopMetrics = cancel
		a.metricsDone = make(chan error, 1)
		go func() {
			err := metrics.Serve(mctx, addr)
			if err != nil {
				logger.Error(mctx, logger.CompMetrics, "serve",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
			a.metricsDone <- err
		}()
	}
	if a.outbox != nil {
		if err := a.outbox.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) stop(ctx context.Context, rt coretelegram.Runtime) error {
	if rt.Dispatcher != nil {
		logger.Info(ctx, logger.CompTGSender, "summary",
			slog.Uint64("send_errors", rt.Dispatcher.ErrorCount()),
		)
	}
	var errs []error
	if a.outbox != nil {
		if err := a.outbox.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("outbox stop: %w", err))
		}
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		select {
		case <-a.metricsDone:
		case <-ctx.Done():
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	return errors.Join(errs...)
}
