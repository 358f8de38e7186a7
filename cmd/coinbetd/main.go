package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coinbet/config"
	"coinbet/core"
	"coinbet/core/state"
	"coinbet/history"
	"coinbet/native/slotgame"
	"coinbet/observability"
	"coinbet/observability/logging"
	"coinbet/oracle"
	"coinbet/rpc"
	"coinbet/storage"
)

const rpcTokenEnv = "COINBET_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("coinbetd", cfg.Environment, logging.ParseLevel(cfg.LogLevel))

	owner, err := config.ParseAddress(cfg.OwnerAddress)
	if err != nil {
		logger.Error("Invalid owner address", slog.Any("error", err))
		os.Exit(1)
	}
	coordinator, err := config.ParseAddress(cfg.CoordinatorAddress)
	if err != nil {
		logger.Error("Invalid coordinator address", slog.Any("error", err))
		os.Exit(1)
	}
	poolParams, err := cfg.PoolParams()
	if err != nil {
		logger.Error("Invalid pool parameters", slog.Any("error", err))
		os.Exit(1)
	}
	gameParams, err := cfg.GameParams()
	if err != nil {
		logger.Error("Invalid game parameters", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to create data dir: %v", err))
	}
	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	archive, err := history.Open(cfg.HistoryPath())
	if err != nil {
		panic(fmt.Sprintf("Failed to open bet history: %v", err))
	}
	defer func() { _ = archive.Close() }()

	var source oracle.Source
	switch strings.ToLower(strings.TrimSpace(cfg.OracleMode)) {
	case "http":
		source = oracle.NewHTTPCoordinator(nil, cfg.OracleEndpoint, cfg.OracleAPIKey)
	default:
		source = oracle.NewManualSource()
	}

	node, err := core.NewNode(state.NewManager(db), core.NodeConfig{
		Owner:       owner,
		Coordinator: coordinator,
		PoolParams:  poolParams,
		GameParams:  gameParams,
		PayTable:    slotgame.DefaultPayTable(),
		Source:      source,
		History:     archive,
		Metrics:     observability.Metrics(),
		Logger:      logger,
	})
	if err != nil {
		logger.Error("Failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}

	authToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if authToken == "" {
		authToken = strings.TrimSpace(cfg.RPCAuthToken)
	}
	server := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken:   authToken,
		Coordinator: coordinator,
		RateLimit:   cfg.RPCRateLimit,
		RateBurst:   cfg.RPCRateBurst,
		Metrics:     observability.Metrics(),
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("JSON-RPC server listening", slog.String("addr", cfg.RPCAddress))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
