package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	synapticai "github.com/jacobxo0/synapticai-sub001"
	"github.com/jacobxo0/synapticai-sub001/auth"
	"github.com/jacobxo0/synapticai-sub001/breaker"
	"github.com/jacobxo0/synapticai-sub001/cache"
	"github.com/jacobxo0/synapticai-sub001/internal/ai"
	"github.com/jacobxo0/synapticai-sub001/internal/api"
	"github.com/jacobxo0/synapticai-sub001/internal/config"
	"github.com/jacobxo0/synapticai-sub001/internal/logger"
	"github.com/jacobxo0/synapticai-sub001/ping"
	"github.com/jacobxo0/synapticai-sub001/policy"
	"github.com/jacobxo0/synapticai-sub001/ratelimit"
	"github.com/jacobxo0/synapticai-sub001/retry"
	"github.com/jacobxo0/synapticai-sub001/security"
	"github.com/jacobxo0/synapticai-sub001/tracing"
)

// ServeCmd starts the servers.
type ServeCmd struct {
	config.Config `embed:""`
}

func (c *ServeCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &c.Config
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log, err := logger.New(os.Stderr, level, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	store, closeStore, err := buildStore(ctx, cfg, rdb, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rlMetrics, err := ratelimit.NewMetrics(reg)
	if err != nil {
		return err
	}
	limiter, err := ratelimit.New(ratelimit.Config{
		Limit:   cfg.RateLimitMaxRequests,
		Window:  cfg.Window(),
		Store:   store,
		Logger:  log,
		Metrics: rlMetrics,
	})
	if err != nil {
		return err
	}
	waitForStore(ctx, limiter, log)

	clients, err := security.NewClientResolver(security.Config{TrustedProxies: cfg.TrustedProxies})
	if err != nil {
		return err
	}

	holder, err := loadPolicies(ctx, cfg, log)
	if err != nil {
		return err
	}

	local, cacheLen, closeCache, err := buildCache(cfg, reg)
	if err != nil {
		return err
	}
	defer closeCache()

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}

	opts := append(synapticai.DefaultOptions(),
		synapticai.WithLogger(log),
		synapticai.WithRateLimit(limiter, clients),
		synapticai.WithPolicies(holder),
		synapticai.WithCache(local),
		synapticai.WithMetricsRegistry(reg),
	)
	if cfg.CacheL2 {
		opts = append(opts, synapticai.WithCacheL2(cache.NewRedis(rdb,
			cache.WithDefaultTTL(cfg.CacheTTL),
			cache.WithLogger(log),
		)))
	}
	if cfg.AuthJWTSecret != "" {
		var jwtOpts []auth.JWTOption
		if cfg.AuthIssuer != "" {
			jwtOpts = append(jwtOpts, auth.WithIssuer(cfg.AuthIssuer))
		}
		v, err := auth.NewJWTVerifier([]byte(cfg.AuthJWTSecret), jwtOpts...)
		if err != nil {
			return err
		}
		opts = append(opts, synapticai.WithAuth(v))
	}
	if cfg.Tracing {
		tp, err := tracing.NewStdoutProvider(os.Stdout, "synapticai")
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(sctx)
		}()
		opts = append(opts, synapticai.WithOpenTelemetry(tracing.TracingConfig{
			TracerProvider: tp,
			Propagators:    tracing.DefaultPropagators(),
		}))
	}

	opts = append(opts, synapticai.WithRoutes(func(s *synapticai.Server) http.Handler {
		clearer, _ := local.(api.Clearer)
		return api.NewRouter(api.Config{
			Cache:       s.Cache(),
			Local:       clearer,
			Provider:    provider,
			CacheTTL:    cfg.CacheTTL,
			StoreHealth: limiter.Ping,
			Metrics:     s.MetricsHandler(),
			MetricsPath: cfg.MetricsPath,
			Logger:      log,
		})
	}))

	srv, err := synapticai.NewServer(opts...)
	if err != nil {
		return err
	}
	srv.RegisterPing(ping.NewHandler(ping.Probes{Store: limiter.Ping, CacheLen: cacheLen}))

	return run(ctx, cfg, srv, log, provider.Name())
}

// run serves until ctx is cancelled, then shuts both listeners down.
func run(ctx context.Context, cfg *config.Config, srv *synapticai.Server, log *slog.Logger, provider string) error {
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.ListenAddr, "store", cfg.RateLimitStore,
			"limit", cfg.RateLimitMaxRequests, "window", cfg.Window(), "provider", provider)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		g.Go(func() error {
			log.Info("grpc server listening", "addr", cfg.GRPCAddr)
			if err := srv.GRPC().Serve(lis); err != nil && !errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			srv.GRPC().GracefulStop()
			close(stopped)
		}()
		err := httpSrv.Shutdown(sctx)
		select {
		case <-stopped:
		case <-sctx.Done():
			srv.GRPC().Stop()
		}
		return err
	})
	return g.Wait()
}

// buildStore returns the counting store selected by RATE_LIMIT_STORE. Shared
// stores are wrapped in a circuit breaker.
func buildStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, log *slog.Logger) (ratelimit.Store, func(), error) {
	var (
		store   ratelimit.Store
		closeFn = func() {}
	)
	switch cfg.RateLimitStore {
	case config.StoreMemory:
		return ratelimit.NewMemoryStore(nil), closeFn, nil
	case config.StoreRedis:
		store = ratelimit.NewRedisStore(rdb, ratelimit.WithTimeout(cfg.StoreTimeout))
	case config.StoreSQL:
		db, err := sql.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		s, err := ratelimit.NewSQLStore(db, cfg.DatabaseDriver, ratelimit.WithQueryTimeout(cfg.StoreTimeout))
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			log.Warn("rate-limit table migration failed; counting will fail open until the database is reachable", "error", err)
		}
		store = s
		closeFn = func() { db.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown rate-limit store %q", cfg.RateLimitStore)
	}

	cb := breaker.New(breaker.Config{
		OnStateChange: func(from, to breaker.State) {
			log.Warn("rate-limit store breaker state changed", "from", from, "to", to)
		},
	})
	return ratelimit.NewBreakerStore(store, cb), closeFn, nil
}

// waitForStore pings the store a few times at startup. Failure is logged,
// not fatal: the limiter fails open.
func waitForStore(ctx context.Context, l *ratelimit.Limiter, log *slog.Logger) {
	_, err := retry.Do(ctx, retry.Config{
		MaxAttempts: 4,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      0.2,
		Retryable:   retry.Errors(ratelimit.ErrStoreUnavailable),
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Info("rate-limit store not ready", "attempt", attempt, "retry_in", delay, "error", err)
		},
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.Ping(ctx)
	})
	if err != nil {
		log.Warn("rate-limit store unavailable at startup; requests will be allowed unmetered", "error", err)
	}
}

// loadPolicies returns the default route groups, or the policy file's when
// configured, and keeps the latter reloaded.
func loadPolicies(ctx context.Context, cfg *config.Config, log *slog.Logger) (*policy.Holder, error) {
	holder := policy.NewHolder(api.DefaultPolicies(cfg.MetricsPath))
	if cfg.PolicyFile == "" {
		return holder, nil
	}
	res, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	holder.Store(res)
	go func() {
		if err := policy.Watch(ctx, cfg.PolicyFile, log, holder.Store); err != nil {
			log.Error("policy watcher stopped", "error", err)
		}
	}()
	return holder, nil
}

// buildCache returns the local response cache, a size probe for ping and a
// release func.
func buildCache(cfg *config.Config, reg prometheus.Registerer) (cache.Cache, func() int, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheRistretto:
		r, err := cache.NewRistretto(int64(cfg.CacheMaxSize), cfg.CacheTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		return r, nil, r.Close, nil
	default:
		m, err := cache.NewMetrics(reg)
		if err != nil {
			return nil, nil, nil, err
		}
		l, err := cache.NewLocal(cache.Options[string, []byte]{
			MaxSize: cfg.CacheMaxSize,
			TTL:     cfg.CacheTTL,
			Name:    "responses",
			Metrics: m,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return l, l.Len, func() {}, nil
	}
}

func buildProvider(ctx context.Context, cfg *config.Config) (ai.Provider, error) {
	if cfg.GeminiAPIKey == "" {
		return ai.Echo{}, nil
	}
	return ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
}
