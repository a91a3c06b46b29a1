package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, redis connection, etc.), security settings
// - default: Values common across all environments (poll interval, timeout, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Fabric    FabricConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization,X-API-Key"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"Asia/Seoul"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"32400"` // 9*60*60
}

type AuthConfig struct {
	APIKeys []string `envconfig:"API_KEYS" required:"true"`
}

type RateLimitConfig struct {
	Window      time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	MaxRequests int           `envconfig:"RATE_LIMIT_MAX_REQUESTS" default:"100"`
	// Tighter limiter for endpoints that skip API key auth (manual webhook trigger)
	PublicWindow      time.Duration `envconfig:"RATE_LIMIT_PUBLIC_WINDOW" default:"1m"`
	PublicMaxRequests int           `envconfig:"RATE_LIMIT_PUBLIC_MAX_REQUESTS" default:"10"`
}

type WebhookConfig struct {
	Secret          string        `envconfig:"WEBHOOK_SECRET" required:"true"`
	PollInterval    time.Duration `envconfig:"WEBHOOK_POLL_INTERVAL" default:"5s"`
	DeliveryTimeout time.Duration `envconfig:"WEBHOOK_DELIVERY_TIMEOUT" default:"30s"`
	MaxAttempts     int           `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"5"`
}

type FabricConfig struct {
	ChannelName   string `envconfig:"FABRIC_CHANNEL_NAME" default:"newportchannel"`
	ChaincodeName string `envconfig:"FABRIC_CHAINCODE_NAME" default:"abstore"`
	// Delay before the simulated ledger reports a commit. Zero disables the
	// timer; completion must then be triggered explicitly.
	SimulatedCommitDelay time.Duration `envconfig:"FABRIC_SIMULATED_COMMIT_DELAY" default:"5s"`
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "16380", // Test redis port
		},
		Log: LogConfig{
			Level:          "error", // Error level only for tests
			TimeZone:       "Asia/Seoul",
			TimeFormat:     "2006-01-02 15:04:05.000",
			TimeZoneOffset: 32400,
		},
		Auth: AuthConfig{
			APIKeys: []string{"test-api-key"},
		},
		RateLimit: RateLimitConfig{
			Window:            time.Minute,
			MaxRequests:       1000,
			PublicWindow:      time.Minute,
			PublicMaxRequests: 1000,
		},
		Webhook: WebhookConfig{
			Secret:          "test-webhook-secret",
			PollInterval:    5 * time.Second,
			DeliveryTimeout: 30 * time.Second,
			MaxAttempts:     5,
		},
		Fabric: FabricConfig{
			ChannelName:          "newportchannel",
			ChaincodeName:        "abstore",
			SimulatedCommitDelay: 0, // Tests trigger completion explicitly
		},
	}
}
