// Package main wires together the catalog sync service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"catalogsync/internal/api"
	"catalogsync/internal/clock/system"
	"catalogsync/internal/config"
	"catalogsync/internal/export"
	"catalogsync/internal/logging"
	"catalogsync/internal/partner"
	"catalogsync/internal/pipeline"
	"catalogsync/internal/store"
	"catalogsync/internal/store/memory"
	"catalogsync/internal/store/postgres"
	redisstore "catalogsync/internal/store/redis"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStore(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer cleanup()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}
	clock := system.New()

	tokens := partner.NewTokenManager(httpClient, st, logger.Named("token"))
	client := partner.NewClient(httpClient, st, clock, logger.Named("partner"))
	pipe := pipeline.New(client, tokens, st, cfg.Sync.Concurrency, logger.Named("pipeline"))
	exporter := export.New(st)

	apiServer := api.NewServer(tokens, pipe, client, exporter, st, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started",
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Backend),
			zap.Int("tenants", len(cfg.Tenants)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildStore selects the persistence backend. The returned cleanup is safe
// to call regardless of backend.
func buildStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return memory.New(), func() {}, nil
	case config.StoreRedis:
		st, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	case config.StorePostgres:
		st, err := postgres.New(ctx, postgres.Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
