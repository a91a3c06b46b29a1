package bootstrap

import (
	"ledger-gateway/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	RedisModule,
	FabricModule,
	components.StoreModule,
	components.DispatcherModule,
	components.UseCaseModule,
	components.HandlerModule,
)
