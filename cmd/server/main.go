package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/torusfall/torusfall-server/internal/config"
	"github.com/torusfall/torusfall-server/internal/game"
	"github.com/torusfall/torusfall-server/internal/match"
	"github.com/torusfall/torusfall-server/internal/repository"
	"github.com/torusfall/torusfall-server/internal/server"
	"github.com/torusfall/torusfall-server/internal/session"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting torusfall server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Log database stats
	stats := db.Stats()
	logger.Info("database connection pool initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)

	// Initialize match archive
	matchRepo := repository.NewMatchRepository(db, logger)
	if err := matchRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to prepare match archive schema", zap.Error(err))
	}
	logger.Info("match archive initialized")

	// Initialize session manager
	sessionMgr := session.NewManager(cfg.Session.LeasePeriod, logger)
	logger.Info("session manager initialized",
		zap.Duration("lease_period", cfg.Session.LeasePeriod),
	)

	// Start session cleanup goroutine
	go sessionMgr.CleanupExpiredSessions(ctx)

	// Initialize credential store
	credStore := session.NewCredentialStore(logger)

	// Initialize replay recorder
	var recorder *game.ReplayRecorder
	if cfg.Replay.Enabled {
		recorder = game.NewReplayRecorder(logger, cfg.Replay.Dir)
		logger.Info("replay recorder initialized", zap.String("dir", cfg.Replay.Dir))
	}

	// Initialize match manager
	matchMgr := match.NewManager(cfg.Game, cfg.Match.TurnDeadline, recorder, matchRepo, logger)
	logger.Info("match manager initialized",
		zap.Duration("turn_deadline", cfg.Match.TurnDeadline),
	)

	// Initialize websocket hub and server
	hub := server.NewHub(cfg.Server, cfg.Game, sessionMgr, credStore, matchMgr, logger)
	go hub.Run(ctx)

	wsServer := server.NewServer(cfg.Server.WebSocket, hub, logger)
	serverErr := make(chan error, 1)
	go func() {
		if wsErr := wsServer.Start(ctx); wsErr != nil {
			serverErr <- wsErr
		}
	}()

	logger.Info("torusfall server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.Int("max_sessions", cfg.Server.MaxSessions),
	)

	// Wait for termination signal or server failure
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("websocket server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	// Close all active sessions
	sessionMgr.CloseAll()

	logger.Info("torusfall server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
