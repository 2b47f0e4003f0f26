// Package daemon composes the gateway with fx: configuration, logging, the
// data-dir lock, the session machine, the ingestion pipeline and the
// operation façade, with lifecycle hooks tying them together.
package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/api"
	"github.com/wagate/wagate/internal/bus"
	"github.com/wagate/wagate/internal/config"
	"github.com/wagate/wagate/internal/creds"
	"github.com/wagate/wagate/internal/directory"
	"github.com/wagate/wagate/internal/dispatch"
	"github.com/wagate/wagate/internal/lock"
	"github.com/wagate/wagate/internal/logging"
	"github.com/wagate/wagate/internal/media"
	"github.com/wagate/wagate/internal/pipeline"
	"github.com/wagate/wagate/internal/session"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/internal/wa"
)

// Params holds what the daemon needs before config is loaded.
type Params struct {
	// ConfigPath overrides the config file location; empty means
	// <data-dir>/config.toml of the default data dir.
	ConfigPath string
	// DataDir overrides the configured data directory.
	DataDir string
	// PairingPhone selects the pairing-code flow for the initial session
	// start; empty selects QR.
	PairingPhone string
}

// Module returns the fx module composing the whole gateway.
func Module(p Params) fx.Option {
	return fx.Module("gateway",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideCreds,
			provideMessageLog,
			provideDirectory,
			provideDialer,
			provideMachine,
			provideParser,
			provideEngine,
			provideDispatch,
			provideMediaCache,
			provideGateway,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = config.Default().Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p.DataDir != "" {
		cfg.DataDir = p.DataDir
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath())
}

func provideBus(logger *zap.Logger) *bus.Bus {
	return bus.NewWithLogger(logger)
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data directory locked", zap.String("dir", cfg.DataDir))
	return l, nil
}

func provideCreds(cfg *config.Config) *creds.Store {
	return creds.NewStore(cfg.CredentialsDir())
}

func provideMessageLog(cfg *config.Config) *store.Log {
	return store.NewLog(cfg.RawRetention)
}

func provideDirectory() *directory.Directory {
	return directory.New()
}

func provideDialer(logger *zap.Logger) *wa.Dialer {
	return wa.NewDialer(logger)
}

func provideMachine(d *wa.Dialer, cs *creds.Store, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *session.Machine {
	return session.NewMachine(d, cs, b, logger, session.Delays{
		Reconnect: cfg.ReconnectDelay(),
		LoggedOut: cfg.LoggedOutDelay(),
	})
}

func provideParser(dir *directory.Directory, m *session.Machine, logger *zap.Logger) *pipeline.Parser {
	return pipeline.NewParser(dir, m, logger)
}

func provideEngine(log *store.Log, dir *directory.Directory, parser *pipeline.Parser, b *bus.Bus, logger *zap.Logger) *pipeline.Engine {
	return pipeline.NewEngine(log, dir, parser, b, logger)
}

func provideDispatch(m *session.Machine, cfg *config.Config, logger *zap.Logger) *dispatch.Service {
	return dispatch.NewService(m, logger, cfg.BulkDelay())
}

func provideMediaCache(log *store.Log, m *session.Machine, cfg *config.Config, logger *zap.Logger) *media.Cache {
	return media.NewCache(log, m, cfg.MediaDir(), logger)
}

func provideGateway(m *session.Machine, dir *directory.Directory, log *store.Log,
	d *dispatch.Service, c *media.Cache, b *bus.Bus, logger *zap.Logger) *api.Gateway {
	return api.NewGateway(m, dir, log, d, c, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, engine *pipeline.Engine, machine *session.Machine,
	gw *api.Gateway, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The engine must subscribe before the machine can produce events.
			engine.Start(context.Background())
			if err := machine.Start(p.PairingPhone); err != nil {
				return err
			}
			logger.Info("gateway started")
			return nil
		},
		OnStop: func(context.Context) error {
			machine.Close()
			engine.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing data-dir lock", zap.Error(err))
			}
			logger.Info("gateway stopped")
			return nil
		},
	})
}
