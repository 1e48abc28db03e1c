package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/sendsol/service/config"
	"github.com/brojonat/sendsol/service/metrics"
	natspkg "github.com/brojonat/sendsol/service/nats"
	"github.com/brojonat/sendsol/service/server"
	"github.com/brojonat/sendsol/service/session"
	"github.com/brojonat/sendsol/service/solana"
	"github.com/brojonat/sendsol/service/wallet"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"network", cfg.SolanaNetwork,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	rpcURL, err := solana.SelectRandomEndpoint(solana.SplitEndpoints(cfg.SolanaRPCURL))
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaRPC := solana.NewRPCClient(rpcURL)
	solanaClient := solana.NewClient(solanaRPC, solana.ClientConfig{
		Endpoint:            cfg.SolanaNetwork,
		Commitment:          rpc.CommitmentType(cfg.SolanaCommitment),
		ConfirmPollInterval: cfg.ConfirmPollInterval,
	}, m, logger)
	logger.Info("initialized solana RPC client", "url", rpcURL)

	// Wallet provider. Without a keypair the session reports that no
	// provider is installed.
	var provider wallet.Provider
	if cfg.WalletKeypairPath != "" {
		var approver wallet.Approver = wallet.AutoApprove
		if !cfg.WalletAutoApprove {
			approver = wallet.NewPromptApprover(os.Stdin, os.Stderr)
		}
		kp, err := wallet.LoadKeypairProvider(cfg.WalletKeypairPath, solanaClient, approver, logger)
		if err != nil {
			logger.Error("failed to load wallet keypair", "error", err)
			os.Exit(1)
		}
		provider = kp
		logger.Info("wallet provider installed",
			"identity", kp.Identity(),
			"auto_approve", cfg.WalletAutoApprove,
		)
	} else {
		logger.Warn("no wallet provider installed (WALLET_KEYPAIR_PATH is empty)")
	}

	ctrl, err := session.New(provider, solanaClient, session.Config{
		ProviderIdentity: cfg.WalletProviderIdentity,
		Network:          cfg.SolanaNetwork,
		ExplorerTemplate: cfg.ExplorerURLTemplate,
		NotificationTTL:  cfg.NotificationTTL,
	}, m, logger)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	// Publish session events to NATS when configured
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		events, unsubscribe := ctrl.Subscribe()
		defer unsubscribe()
		go natspkg.Forward(ctx, events, publisher, logger)
		logger.Info("publishing session events", "nats_url", cfg.NATSURL, "stream", natspkg.StreamName)
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, ctrl, m, logger).
		WithAllowedOrigins(cfg.CORSAllowedOrigins)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"session_id", ctrl.ID(),
		"solana_rpc", rpcURL,
		"nats_url", cfg.NATSURL,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Ends open SSE streams so Shutdown does not wait on them.
		ctrl.Close()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
