package components

import (
	"ledger-gateway/internal/dispatcher"
	"ledger-gateway/internal/infra/callbackstore"
	"ledger-gateway/internal/infra/ledgerstore"
	"ledger-gateway/internal/infra/webhookstore"
	"ledger-gateway/internal/usecase"

	"go.uber.org/fx"
)

var StoreModule = fx.Module("store",
	fx.Provide(
		fx.Annotate(
			ledgerstore.New,
			fx.As(new(usecase.LedgerStore)),
		),
		fx.Annotate(
			callbackstore.New,
			fx.As(new(usecase.CallbackStore)),
		),
		fx.Annotate(
			webhookstore.New,
			fx.As(new(usecase.WebhookStore)),
			fx.As(new(usecase.WebhookEnqueuer)),
			fx.As(new(dispatcher.JobStore)),
		),
	),
)
