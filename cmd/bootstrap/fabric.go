package bootstrap

import (
	"ledger-gateway/internal/infra/fabric"
	"ledger-gateway/internal/pkg/config"

	"go.uber.org/fx"
)

var FabricModule = fx.Module("fabric",
	fx.Provide(
		NewFabricClient,
		func(client *fabric.SimulatedClient) fabric.Client {
			return client
		},
	),
)

func NewFabricClient(cfg config.Config) *fabric.SimulatedClient {
	return fabric.NewSimulatedClient(cfg.Fabric)
}
