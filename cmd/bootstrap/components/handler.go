package components

import (
	"ledger-gateway/internal/handler"
	"ledger-gateway/internal/handler/api"
	"ledger-gateway/internal/handler/middleware"
	"ledger-gateway/internal/infra/kvs"
	"ledger-gateway/internal/pkg/config"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewTransactionHandler,
		api.NewWebhookHandler,
		func(cfg config.Config) *middleware.AuthMiddleware {
			return middleware.NewAuthMiddleware(cfg.Auth)
		},
		func(kv kvs.Store, cfg config.Config) *middleware.RateLimiters {
			return middleware.NewRateLimiters(kv, cfg.RateLimit)
		},
	),
	fx.Invoke(handler.NewRouter),
)
