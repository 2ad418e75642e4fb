package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"votechain-backend/api"
	"votechain-backend/config"
	"votechain-backend/ledger"
	"votechain-backend/notify"
	"votechain-backend/service"
	"votechain-backend/storage"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := cfg.DatabasePath
	if dsn == "" {
		dsn = filepath.Join(cfg.DataDir, "votechain.db")
	}

	store, err := storage.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	chain := ledger.New(store)
	if err := chain.EnsureGenesis(); err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	if valid, err := chain.Verify(cfg.Difficulty); err != nil {
		return fmt.Errorf("failed to verify ledger: %w", err)
	} else if !valid {
		return errors.New("ledger failed integrity verification, refusing to start")
	}

	var notifier notify.Notifier
	if cfg.NotifierURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotifierURL, cfg.NotifierKey, cfg.NotifierTimeout)
	} else {
		slog.Warn("no mail gateway configured, one-time codes are logged instead of delivered")
		notifier = notify.NewMockNotifier()
	}

	signer, err := service.LoadOrGenerateSigner(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load operator credentials: %w", err)
	}
	slog.Info("operator key loaded", "address", signer.OperatorAddress())

	challengeCfg := service.ChallengeConfig{
		CodeTTL:       cfg.CodeTTL,
		RequestWindow: cfg.RequestWindow,
		RequestCap:    cfg.RequestCap,
		AttemptCap:    cfg.AttemptCap,
	}

	metrics := service.NewMetricsCollector()
	coordinator := service.NewCoordinator(
		store,
		chain,
		ledger.NewMiner(cfg.Difficulty),
		service.NewChallengeService(store, challengeCfg),
		service.NewAuthorizer(cfg.FaceMatchThreshold),
		notifier,
		signer,
		metrics,
	)
	coordinator.Start()
	defer coordinator.Stop()

	mux := http.NewServeMux()
	server := api.NewServer(cfg, store, chain, coordinator, service.NewTallyService(store), metrics, signer)
	server.Routes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serverChan := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", cfg.Port, "difficulty", cfg.Difficulty)
		serverChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server shutdown completed")
	return nil
}
