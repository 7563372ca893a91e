// Command trustd serves the goTrust session and security API over HTTP.
//
// Configuration is layered: built-in defaults, then the YAML file named by
// GOTRUST_CONFIG, then GOTRUST_* variables. Infrastructure comes from the
// environment:
//
//	REDIS_URL      redis://host:6379/0 (sessions, challenges, codes, limiters)
//	DATABASE_URL   postgres DSN (methods, devices, preferences; optional sessions)
//	HTTP_ADDR      listen address, default :8080
//
// The token key is read from the variable named by token.key_env
// (GOTRUST_TOKEN_KEY by default). Without it the server still starts and
// answers 503 on token operations.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/httpapi"
	"github.com/MrEthical07/goTrust/metrics/export/prometheus"
	"github.com/MrEthical07/goTrust/otp"
	"github.com/MrEthical07/goTrust/storage/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(logger); err != nil {
		logger.Error("trustd stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := goTrust.LoadConfig(os.Getenv("GOTRUST_CONFIG"))
	if err != nil {
		return err
	}

	builder := goTrust.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(goTrust.NewSlogSink(logger.With("stream", "audit")))

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed; continuing", "error", err)
	}
	builder.WithRedis(rdb)

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := postgres.Connect(ctx, dsn, 20)
		if err != nil {
			return err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return err
		}
		builder.WithDatabase(db)
	} else if cfg.Security.ProductionMode {
		return errors.New("DATABASE_URL is required in production mode")
	}

	if !cfg.Security.ProductionMode && os.Getenv("GOTRUST_DEV_OTP_LOG") == "true" {
		builder.WithChannel(otp.ChannelFunc(func(ctx context.Context, d otp.Delivery) error {
			logger.InfoContext(ctx, "dev otp delivery", "kind", string(d.Kind), "target", d.Target, "code", d.Code)
			return nil
		}))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Ready(); err != nil {
		logger.Warn("engine not ready; token operations will report unavailable", "error", err)
	}

	mux := chi.NewRouter()
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", prometheus.NewPrometheusExporter(engine).Handler())
	}
	mux.Mount("/", httpapi.NewRouter(httpapi.NewHandler(engine)))

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("trustd listening", "addr", addr, "session_backend", cfg.Session.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("trustd shutting down")
	return srv.Shutdown(shutdownCtx)
}
