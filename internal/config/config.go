// Package config defines the server's runtime configuration. Every field is
// a CLI flag backed by an environment variable, so the same struct is filled
// from flags, the process environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/kong"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Rate-limit store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQL    = "sql"
)

// Local cache backends.
const (
	CacheBounded   = "bounded"
	CacheRistretto = "ristretto"
)

// Config is embedded into the serve and check-config commands.
type Config struct {
	ListenAddr      string        `name:"listen-addr" env:"LISTEN_ADDR" default:":8080" help:"HTTP listen address."`
	GRPCAddr        string        `name:"grpc-addr" env:"GRPC_ADDR" help:"gRPC listen address (empty disables gRPC)."`
	MetricsPath     string        `name:"metrics-path" env:"METRICS_PATH" default:"/metrics" help:"Path serving Prometheus metrics (empty disables)."`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"10s" help:"Graceful shutdown deadline."`

	LogLevel  string `name:"log-level" env:"LOG_LEVEL" default:"info" help:"Log level (debug, info, warn, error)."`
	LogFormat string `name:"log-format" env:"LOG_FORMAT" default:"text" enum:"text,json" help:"Log format (text or json)."`

	RateLimitMaxRequests int    `name:"rate-limit-max-requests" env:"RATE_LIMIT_MAX_REQUESTS" default:"100" help:"Requests allowed per client per window."`
	RateLimitWindow      int    `name:"rate-limit-window" env:"RATE_LIMIT_WINDOW" default:"60" help:"Rate-limit window in seconds."`
	RateLimitStore       string `name:"rate-limit-store" env:"RATE_LIMIT_STORE" default:"memory" help:"Counting store: memory, redis or sql."`
	PolicyFile           string `name:"rate-limit-policy-file" env:"RATE_LIMIT_POLICY_FILE" type:"path" help:"YAML route-group policy file, reloaded on change."`

	RedisURL       string        `name:"redis-url" env:"REDIS_URL" help:"Redis URL for the redis store and cache L2."`
	StoreTimeout   time.Duration `name:"store-timeout" env:"STORE_TIMEOUT" default:"250ms" help:"Per-call timeout for the redis and sql rate-limit stores."`
	DatabaseDriver string        `name:"database-driver" env:"DATABASE_DRIVER" default:"postgres" help:"SQL driver for the sql store: postgres or sqlite3."`
	DatabaseURL    string        `name:"database-url" env:"DATABASE_URL" help:"DSN for the sql store."`

	TrustedProxies []string `name:"trusted-proxies" env:"TRUSTED_PROXIES" sep:"," help:"CIDRs of proxies allowed to set X-Forwarded-For."`

	CacheBackend string        `name:"cache-backend" env:"CACHE_BACKEND" default:"bounded" help:"Local cache: bounded or ristretto."`
	CacheMaxSize int           `name:"cache-max-size" env:"CACHE_MAX_SIZE" default:"1000" help:"Maximum local cache entries."`
	CacheTTL     time.Duration `name:"cache-ttl" env:"CACHE_TTL" default:"1h" help:"Default cache entry lifetime."`
	CacheL2      bool          `name:"cache-l2" env:"CACHE_L2" help:"Add Redis as a shared second cache tier."`

	AuthJWTSecret string `name:"auth-jwt-secret" env:"AUTH_JWT_SECRET" help:"HS256 secret for session tokens (empty disables auth)."`
	AuthIssuer    string `name:"auth-issuer" env:"AUTH_ISSUER" help:"Required token issuer."`

	GeminiAPIKey string `name:"gemini-api-key" env:"GEMINI_API_KEY" help:"Gemini API key (empty uses the echo provider)."`
	GeminiModel  string `name:"gemini-model" env:"GEMINI_MODEL" default:"gemini-2.0-flash" help:"Gemini model name."`

	Tracing bool `name:"tracing" env:"TRACING" help:"Write OpenTelemetry spans to stdout."`
}

// Window returns the rate-limit window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.RateLimitWindow) * time.Second
}

// Validate reports the first invalid setting. kong calls it after parsing.
func (c *Config) Validate() error {
	switch {
	case c.RateLimitMaxRequests <= 0:
		return fmt.Errorf("%w: RATE_LIMIT_MAX_REQUESTS must be > 0, got %d", ErrInvalid, c.RateLimitMaxRequests)
	case c.RateLimitWindow <= 0:
		return fmt.Errorf("%w: RATE_LIMIT_WINDOW must be > 0, got %d", ErrInvalid, c.RateLimitWindow)
	case c.CacheMaxSize <= 0:
		return fmt.Errorf("%w: CACHE_MAX_SIZE must be > 0, got %d", ErrInvalid, c.CacheMaxSize)
	case c.CacheTTL <= 0:
		return fmt.Errorf("%w: CACHE_TTL must be > 0, got %s", ErrInvalid, c.CacheTTL)
	case c.StoreTimeout <= 0:
		return fmt.Errorf("%w: STORE_TIMEOUT must be > 0, got %s", ErrInvalid, c.StoreTimeout)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: SHUTDOWN_TIMEOUT must be > 0, got %s", ErrInvalid, c.ShutdownTimeout)
	case c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/"):
		return fmt.Errorf("%w: METRICS_PATH must start with /, got %q", ErrInvalid, c.MetricsPath)
	}

	switch c.RateLimitStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL is required for the redis store", ErrInvalid)
		}
	case StoreSQL:
		if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite3" {
			return fmt.Errorf("%w: unknown DATABASE_DRIVER %q", ErrInvalid, c.DatabaseDriver)
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the sql store", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown RATE_LIMIT_STORE %q", ErrInvalid, c.RateLimitStore)
	}

	switch c.CacheBackend {
	case CacheBounded, CacheRistretto:
	default:
		return fmt.Errorf("%w: unknown CACHE_BACKEND %q", ErrInvalid, c.CacheBackend)
	}
	if c.CacheL2 && c.RedisURL == "" {
		return fmt.Errorf("%w: REDIS_URL is required for CACHE_L2", ErrInvalid)
	}
	return nil
}

// Parse fills a Config from args and the environment, applying defaults and
// validation.
func Parse(args []string) (*Config, error) {
	var c Config
	parser, err := kong.New(&c, kong.Name("synapticai"))
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}
	return &c, nil
}
