package components

import (
	"context"

	"ledger-gateway/internal/dispatcher"
	"ledger-gateway/internal/pkg/clock"
	"ledger-gateway/internal/pkg/config"
	"ledger-gateway/internal/usecase"

	"go.uber.org/fx"
)

var DispatcherModule = fx.Module("dispatcher",
	fx.Provide(
		fx.Annotate(
			NewDispatcher,
			fx.As(new(usecase.DispatcherState)),
		),
	),
)

// NewDispatcher ties the polling loop to the application lifecycle: it starts
// after the dependency graph is built and drains before the process exits.
func NewDispatcher(lc fx.Lifecycle, store dispatcher.JobStore, cfg config.Config, clk clock.Clock) *dispatcher.Dispatcher {
	d := dispatcher.New(store, cfg.Webhook, clk)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			d.Stop()
			return nil
		},
	})

	return d
}
