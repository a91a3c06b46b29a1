package components

import (
	"ledger-gateway/internal/infra/fabric"
	"ledger-gateway/internal/pkg/clock"
	"ledger-gateway/internal/usecase"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	fx.Provide(
		clock.NewRealClock,
		usecase.NewTransactionUseCase,
		usecase.NewWebhookUseCase,
	),
	// The simulated ledger reports commits asynchronously; route its
	// completion notices into the transaction use case.
	fx.Invoke(func(client *fabric.SimulatedClient, uc usecase.TransactionUseCase) {
		client.SetCompletionHandler(uc)
	}),
)
