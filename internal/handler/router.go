package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-gateway/internal/handler/api"
	"ledger-gateway/internal/handler/middleware"
	"ledger-gateway/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(
	engine *gin.Engine,
	cfg config.Config,
	transactionHandler *api.TransactionHandler,
	webhookHandler *api.WebhookHandler,
	authMiddleware *middleware.AuthMiddleware,
	rateLimiters *middleware.RateLimiters,
) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, transactionHandler, webhookHandler, authMiddleware, rateLimiters)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(nil, cfg.Log))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(
	engine *gin.Engine,
	transactionHandler *api.TransactionHandler,
	webhookHandler *api.WebhookHandler,
	authMiddleware *middleware.AuthMiddleware,
	rateLimiters *middleware.RateLimiters,
) {
	engine.GET("/health", healthCheck)

	apiGroup := engine.Group("/api")
	{
		fabric := apiGroup.Group("/fabric")
		fabric.Use(authMiddleware.RequireAPIKey())
		fabric.Use(rateLimiters.API.Limit())
		{
			addRoutes(fabric, []route{
				{Method: http.MethodPost, Path: "/submit", Handler: transactionHandler.SubmitTransaction},
				{Method: http.MethodGet, Path: "/status/:correlationId", Handler: transactionHandler.GetTransaction},
				{Method: http.MethodGet, Path: "/tx/:txId/status", Handler: transactionHandler.GetTransactionByTxID},
				{Method: http.MethodGet, Path: "/transactions", Handler: transactionHandler.ListTransactions},
				{Method: http.MethodPost, Path: "/retry/:correlationId", Handler: transactionHandler.RetryTransaction},
			})
		}

		webhooks := apiGroup.Group("/webhooks")
		{
			// The test trigger stays open for webhook receiver development,
			// guarded by the rate limiter alone.
			addRoutes(webhooks, []route{
				{Method: http.MethodPost, Path: "/test", Handler: webhookHandler.TriggerTest, Mw: []gin.HandlerFunc{rateLimiters.Public.Limit()}},
			})

			operator := webhooks.Group("")
			operator.Use(authMiddleware.OptionalAPIKey())
			addRoutes(operator, []route{
				{Method: http.MethodGet, Path: "/status", Handler: webhookHandler.GetStats},
				{Method: http.MethodGet, Path: "/dlq", Handler: webhookHandler.GetDLQ},
				{Method: http.MethodPost, Path: "/dlq/reprocess", Handler: webhookHandler.ReplayDLQ},
				{Method: http.MethodPost, Path: "/retry/:jobId", Handler: webhookHandler.ReplayJob},
				{Method: http.MethodGet, Path: "/history/:correlationId", Handler: webhookHandler.GetHistory},
			})
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
