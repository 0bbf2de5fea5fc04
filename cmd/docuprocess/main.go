package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vincentventalon/docuprocess/pkg/api"
	"github.com/vincentventalon/docuprocess/pkg/auth"
	"github.com/vincentventalon/docuprocess/pkg/config"
	"github.com/vincentventalon/docuprocess/pkg/convert"
	"github.com/vincentventalon/docuprocess/pkg/credits"
	"github.com/vincentventalon/docuprocess/pkg/fetch"
	"github.com/vincentventalon/docuprocess/pkg/httputil"
	"github.com/vincentventalon/docuprocess/pkg/middleware"
	"github.com/vincentventalon/docuprocess/pkg/observability"
	"github.com/vincentventalon/docuprocess/pkg/ratelimit"
	"github.com/vincentventalon/docuprocess/pkg/storage/postgres"
	redisstore "github.com/vincentventalon/docuprocess/pkg/storage/redis"
	"github.com/vincentventalon/docuprocess/pkg/teams"
)

func main() {
	migrate := flag.Bool("migrate", false, "Apply the billing schema and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger, *migrate); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger, migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres: primary plus optional read replicas.
	connMgr, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: cfg.Database.ReplicaURLList(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer connMgr.Close()

	if migrate {
		if err := credits.Migrate(ctx, connMgr.Primary()); err != nil {
			return err
		}
		logger.Info("billing schema applied")
		return nil
	}

	connMgr.StartHealthCheckRoutine(ctx, 30*time.Second)

	// Observability: private metrics registry and optional tracing.
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownOTel(shutdownCtx, providers, logger); err != nil {
			logger.WithError(err).Warn("otel shutdown failed")
		}
	}()

	// Rate limiter: in-process by default, Redis when configured.
	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		redisClient, err := redisstore.NewClient(redisstore.Config{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient.Client(), cfg.RateLimit.Window, "ratelimit")
	default:
		memLimiter := ratelimit.NewMemoryLimiter(cfg.RateLimit.Window)
		memLimiter.StartCleanup(ctx, cfg.RateLimit.CleanupInterval)
		limiter = memLimiter
	}

	// Identity: OIDC bearer verification plus API keys, team resolution
	// backed by an expirable read cache.
	verifier, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
		IssuerURL: cfg.Auth.IssuerURL,
		ClientID:  cfg.Auth.ClientID,
	})
	if err != nil {
		return fmt.Errorf("oidc: %w", err)
	}

	teamStore := teams.NewCachedStore(teams.NewPostgresStore(connMgr.Replica()), 1024, 30*time.Second)
	teamResolver := teams.NewResolver(teamStore, logger)
	keyStore := auth.NewPostgresKeyStore(connMgr.Replica())
	resolver := auth.NewResolver(verifier, keyStore, teamStore, teamResolver, cfg.Auth.AdminEmails, logger)

	ledger := credits.NewPostgresLedger(connMgr.Primary(), connMgr.Replica())

	guard := fetch.NewGuard()
	fetcher := fetch.NewFetcher(guard, fetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		MaxSize:      cfg.Fetch.MaxSizeBytes,
	}, logger, metrics)
	converter := convert.NewFitzConverter(logger)

	server := api.NewServer(resolver, limiter, ledger, fetcher, converter, logger, metrics, api.Options{
		RateLimits: middleware.RateLimitOptions{
			FreeLimit: cfg.RateLimit.FreeLimit,
			PaidLimit: cfg.RateLimit.PaidLimit,
		},
		MaxPDFSize: cfg.Fetch.MaxSizeBytes,
	})

	var handler http.Handler = httputil.Chain(
		httputil.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		observability.HTTPMetricsMiddleware(metrics),
	)(server.Router())
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "docuprocess")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(registry, connMgr, cfg),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api server shutdown failed")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthMux serves liveness, readiness, and metrics on the probe port.
func healthMux(registry *prometheus.Registry, connMgr *postgres.ConnectionManager, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := connMgr.HealthCheck(ctx); err != nil {
			httputil.WriteServiceUnavailable(w, "database unavailable")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	return mux
}
