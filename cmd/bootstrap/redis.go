package bootstrap

import (
	"context"

	"ledger-gateway/internal/infra/kvs"
	"ledger-gateway/internal/pkg/config"

	"go.uber.org/fx"
)

var RedisModule = fx.Module("redis",
	fx.Provide(
		fx.Annotate(
			NewKVS,
			fx.As(new(kvs.Store)),
		),
	),
)

func NewKVS(lc fx.Lifecycle, cfg config.Config) (*kvs.Client, error) {
	client, cleanup, err := kvs.Connect(cfg.Redis)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})

	return client, nil
}
