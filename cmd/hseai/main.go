package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/safesight/hseai/pkg/api"
	"github.com/safesight/hseai/pkg/auth"
	"github.com/safesight/hseai/pkg/config"
	"github.com/safesight/hseai/pkg/genai"
	"github.com/safesight/hseai/pkg/observability"
	"github.com/safesight/hseai/pkg/reports"
	"github.com/safesight/hseai/pkg/tenant"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := tenant.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations applied")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, falling back to in-process cache only")
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("redis connected")
		}
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	tenantStore := tenant.NewPostgresService(db)
	tenants := tenant.NewCachedService(tenantStore, redisClient, metrics, tenant.DefaultCacheConfig())
	reportStore := reports.NewPostgresStore(db)

	providerOpts := []genai.GeminiOption{}
	if cfg.Provider.BaseURL != "" {
		providerOpts = append(providerOpts, genai.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.Model != "" {
		providerOpts = append(providerOpts, genai.WithModel(cfg.Provider.Model))
	}
	provider := genai.NewGeminiClient(cfg.Provider.APIKey, providerOpts...)

	generator := reports.NewGenerator(tenants, reportStore, provider, metrics,
		reports.WithProviderTimeout(cfg.Provider.Timeout))

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenIssuer)
	server := api.NewServer(logger, metrics, verifier, tenants, reportStore, generator)

	// Monthly usage counter reset. Runs shortly after midnight UTC on the
	// first of each month.
	scheduler := cron.New(cron.WithLocation(time.UTC))
	if _, err := scheduler.AddFunc(cfg.UsageResetSchedule, func() {
		resetCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := tenantStore.ResetMonthlyCounters(resetCtx)
		if err != nil {
			logger.WithError(err).Error("monthly usage reset failed")
			return
		}
		logger.WithField("ledgers", n).Info("monthly usage counters reset")
	}); err != nil {
		return fmt.Errorf("failed to schedule usage reset: %w", err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	healthMux.Handle("/metrics", metrics.Handler())
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		return nil
	})

	return g.Wait()
}

// connectDatabase opens the connection pool and waits for the database to
// accept connections, retrying with exponential backoff so the service
// survives starting before its database does.
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(time.Minute))
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
