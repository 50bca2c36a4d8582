// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/catalog"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/config"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/database"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/handler"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/inventory"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/ledger"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/logger"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/notify"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/repository"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	})
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// ── 1. Inventory backend ──────────────────────────────────────────────
	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	// ── 2. Notifications ──────────────────────────────────────────────────
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Redis.Enabled {
		rdb, err := notify.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		notifier = notify.NewRedis(rdb)
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := service.NewEventService(backend, service.Options{
		Metrics:           metrics.New(reg),
		Notifier:          notifier,
		Logger:            log,
		ServiceFeePercent: cfg.Checkout.ServiceFeePercent,
	})
	router := handler.NewRouter(handler.NewEventHandler(svc, log), handler.RouterConfig{
		Logger:   log,
		Auth:     handler.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer),
		Limiter:  handler.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Gatherer: reg,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.Int("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// openBackend returns the configured inventory backend and its cleanup.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (service.Backend, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

		store := repository.NewStore(pool, log)
		if cfg.Store.SeedCatalog {
			events, err := catalog.Seed()
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			if _, err := store.SeedIfEmpty(ctx, events); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("seed catalog: %w", err)
			}
		}
		return store, pool.Close, nil

	default:
		cat := catalog.New()
		if cfg.Store.SeedCatalog {
			var err error
			if cat, err = catalog.NewSeeded(); err != nil {
				return nil, nil, err
			}
			log.Info("loaded seed catalog", zap.Int("events", cat.Len()))
		}
		return inventory.New(cat, ledger.New(), log), func() {}, nil
	}
}
