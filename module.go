package messagestore

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/drakeet/messagestore/internal/logging"
)

// Module wires the store into an fx application: it provides the logger
// and the opened *Store, and closes the store on shutdown.
func Module(cfg Config) fx.Option {
	return fx.Module("messagestore",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideStore,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg Config) (*zap.Logger, error) {
	return logging.New(cfg.LogFile)
}

func provideStore(cfg Config, logger *zap.Logger) (*Store, error) {
	return Open(cfg, logger)
}

func registerLifecycle(lc fx.Lifecycle, s *Store, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := s.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			return nil
		},
	})
}
