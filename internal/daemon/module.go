package daemon

import (
	"context"

	"github.com/messenjrali/msgr/internal/api"
	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/config"
	"github.com/messenjrali/msgr/internal/lock"
	"github.com/messenjrali/msgr/internal/logging"
	"github.com/messenjrali/msgr/internal/notify"
	"github.com/messenjrali/msgr/internal/outbox"
	"github.com/messenjrali/msgr/internal/realtime"
	"github.com/messenjrali/msgr/internal/rest"
	"github.com/messenjrali/msgr/internal/roster"
	"github.com/messenjrali/msgr/internal/session"
	"github.com/messenjrali/msgr/internal/status"
	"github.com/messenjrali/msgr/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideCredentials,
			provideWatcher,
			provideRest,
			provideManager,
			provideRoster,
			provideNotify,
			provideSender,
			provideHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		logger.Info("no usable config file, using defaults", zap.Error(err))
		return config.Default()
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(session.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCredentials(p Params) (*session.Store, error) {
	return session.NewStore(session.CredentialsPath(p.ProfileName))
}

func provideWatcher(creds *session.Store, b *bus.Bus, logger *zap.Logger) *session.Watcher {
	return session.NewWatcher(creds, b, logger)
}

func provideRest(cfg *config.Config, creds *session.Store, logger *zap.Logger) *rest.Client {
	return rest.NewClient(cfg.APIBaseURL, creds, logger)
}

func provideManager(cfg *config.Config, creds *session.Store, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *realtime.Manager {
	return realtime.NewManager(cfg.RealtimeURL, creds, b, machine, logger)
}

func provideRoster(client *rest.Client, creds *session.Store, db *store.DB, b *bus.Bus, logger *zap.Logger) *roster.Reconciler {
	return roster.New(client, creds, db, b, logger)
}

func provideNotify(client *rest.Client, db *store.DB, b *bus.Bus, logger *zap.Logger) *notify.Store {
	return notify.NewStore(client, db, b, logger)
}

func provideSender(db *store.DB, client *rest.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, b, logger)
}

func provideHandler(
	p Params,
	machine *status.Machine,
	creds *session.Store,
	client *rest.Client,
	rt *realtime.Manager,
	rec *roster.Reconciler,
	notifications *notify.Store,
	sender *outbox.Sender,
	cfg *config.Config,
	logger *zap.Logger,
) *api.Handler {
	return api.NewHandler(api.Params{
		Profile: p.ProfileName,
		Machine: machine,
		Creds:   creds,
		Rest:    client,
		Rt:      rt,
		Roster:  rec,
		Notify:  notifications,
		Outbox:  sender,
		Config:  cfg,
		Logger:  logger,
	})
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *Server,
	lk *lock.Lock,
	creds *session.Store,
	watcher *session.Watcher,
	rt *realtime.Manager,
	rec *roster.Reconciler,
	notifications *notify.Store,
	sender *outbox.Sender,
	machine *status.Machine,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Last-known-good state from the cache, before any fetch.
			if err := rec.Hydrate(); err != nil {
				logger.Warn("conversation cache hydration failed", zap.Error(err))
			}
			if err := notifications.Hydrate(); err != nil {
				logger.Warn("notification cache hydration failed", zap.Error(err))
			}

			runCtx := context.Background()
			rec.Start(runCtx)
			notifications.Start(runCtx)
			sender.Start(runCtx)

			if err := watcher.Start(runCtx); err != nil {
				logger.Warn("credentials watcher failed to start", zap.Error(err))
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			// Health ticker plus credential-change recycling.
			rt.Start(runCtx)

			if creds.AccessToken() == "" {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
				return nil
			}

			_ = machine.Transition(status.Connecting)
			go func() {
				if err := rt.Connect(); err != nil {
					logger.Warn("initial realtime connect failed", zap.Error(err))
				}
				if err := rec.Load(runCtx); err != nil {
					logger.Warn("initial conversation load failed", zap.Error(err))
				}
				if err := rec.LoadContacts(runCtx); err != nil {
					logger.Warn("initial contact load failed", zap.Error(err))
				}
				if err := notifications.Load(runCtx); err != nil {
					logger.Warn("initial notification load failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			notifications.Stop()
			rec.Stop()
			rt.Stop()
			watcher.Stop()
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
