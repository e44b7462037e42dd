// Command stakingd hosts the staking ledger as an observer daemon. It opens
// the LevelDB ledger, optionally creates the vault on boot and serves
// read-only vault and account state with metrics and health over HTTP.
// Stake, Unstake and Claim are reached through the native/staking Go API;
// the daemon exposes no mutating endpoint.
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
	"syscall"
	"time"

	"stakevault/config"
	stakeerr "stakevault/core/errors"
	"stakevault/core/events"
	"stakevault/core/state"
	"stakevault/core/types"
	"stakevault/native/staking"
	"stakevault/observability/logging"
	telemetry "stakevault/observability/otel"
	"stakevault/storage"
)

const serviceName = "stakingd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("stakingd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(serviceName, cfg.Environment, logging.FileOptions{Path: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	stakingCfg, err := cfg.Staking()
	if err != nil {
		return err
	}
	engine, err := staking.NewEngine(state.NewManager(db), stakingCfg)
	if err != nil {
		return fmt.Errorf("build staking engine: %w", err)
	}
	engine.WithLogger(logger)
	engine.WithEmitter(logEmitter{logger: logger})

	if cfg.InitVaultOnBoot {
		if err := initVault(ctx, engine, stakingCfg); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           newRouter(engine, nil),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("observer listening", slog.String("address", cfg.MetricsAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen and serve: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	return nil
}

// initVault creates the vault on first boot. An existing vault is fine.
func initVault(ctx context.Context, engine *staking.Engine, cfg staking.Config) error {
	if cfg.Authority.IsZero() {
		return fmt.Errorf("InitVaultOnBoot requires Authority to be configured")
	}
	err := engine.InitializeVault(ctx, cfg.Authority)
	if err != nil && !errors.Is(err, stakeerr.ErrAlreadyInitialized) {
		return fmt.Errorf("initialize vault: %w", err)
	}
	return nil
}

type eventConverter interface {
	Event() *types.Event
}

// logEmitter writes ledger events to the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(e events.Event) {
	attrs := []any{slog.String("type", e.EventType())}
	if conv, ok := e.(eventConverter); ok {
		for key, value := range conv.Event().Attributes {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	l.logger.Info("ledger event", attrs...)
}
