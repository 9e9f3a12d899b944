package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/campaign-manager/internal/api"
	"github.com/LeventeLantos/campaign-manager/internal/cache"
	"github.com/LeventeLantos/campaign-manager/internal/campaign"
	"github.com/LeventeLantos/campaign-manager/internal/config"
	"github.com/LeventeLantos/campaign-manager/internal/reconcile"
	"github.com/LeventeLantos/campaign-manager/internal/scheduler"
	"github.com/LeventeLantos/campaign-manager/internal/send"
	"github.com/LeventeLantos/campaign-manager/internal/store"
	"github.com/LeventeLantos/campaign-manager/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("campaign manager starting",
		"addr", cfg.Server.Address,
		"driver", cfg.Database.Driver,
		"transport", cfg.Transport.Mode,
		"redis", cfg.Redis.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(store.Driver(cfg.Database.Driver), cfg.Database.URL)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	var progressCache cache.ProgressCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		progressCache = cache.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	tr := buildTransport(cfg, logger)

	svc, err := campaign.NewService(st, tr, progressCache, send.Options{
		BatchSize:  cfg.Send.BatchSize,
		BatchDelay: cfg.Send.BatchDelay,
	}, logger)
	if err != nil {
		log.Fatalf("create campaign service: %v", err)
	}

	rec := reconcile.NewFromSQL(st, cfg.Import.ChunkSize, logger)

	sched, err := scheduler.New(cfg.Scheduler.Interval, svc, logger)
	if err != nil {
		log.Fatalf("create scheduler: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(st, svc, rec, sched)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(handler)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

func buildTransport(cfg *config.Config, logger *slog.Logger) send.Transport {
	switch cfg.Transport.Mode {
	case "interactive":
		return transport.NewComposerClient(cfg.Transport.ComposerURL, cfg.Transport.RatePerSec)
	case "automation":
		// Per-message composer as fallback when the batch runner has
		// no matching automation.
		var fallback transport.Dispatcher
		if cfg.Transport.ComposerURL != "" {
			fallback = transport.NewComposerClient(cfg.Transport.ComposerURL, cfg.Transport.RatePerSec)
		}
		return transport.NewAutomationClient(
			cfg.Transport.AutomationURL,
			cfg.Transport.AutomationName,
			cfg.Send.BatchSize,
			cfg.Send.BatchDelay,
			fallback,
			logger,
		)
	default:
		return transport.NewSimulated()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
