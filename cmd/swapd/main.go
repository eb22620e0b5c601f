package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"swapd/adapters/doged"
	"swapd/adapters/evm"
	"swapd/adapters/memchain"
	"swapd/config"
	"swapd/core/events"
	"swapd/native/swap"
	"swapd/observability/logging"
	"swapd/observability/metrics"
	"swapd/rpc"
	"swapd/storage/boltstore"
)

const rpcTokenEnv = "SWAPD_RPC_TOKEN"

// logEmitter writes engine events to the structured log.
type logEmitter struct {
	log *slog.Logger
}

func (e *logEmitter) Emit(evt *events.Event) {
	if evt == nil {
		return
	}
	attrs := make([]any, 0, len(evt.Attributes)*2)
	for key, value := range evt.Attributes {
		attrs = append(attrs, key, value)
	}
	e.log.Info(evt.Type, attrs...)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "./swapd.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		return err
	}
	metrics.Register()
	log := slog.Default()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}
	store, err := boltstore.Open(filepath.Join(cfg.DataDir, "swaps.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	engine := swap.NewEngine(swap.NewRegistry(store), swap.NewLedger(swap.DefaultCommitWindow), cfg.Limits())
	engine.SetEmitter(metrics.NewEmitter(&logEmitter{log: log.With("component", "engine")}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := wireAdapters(ctx, cfg, engine); err != nil {
		return err
	}

	go runSweeper(ctx, engine, cfg.SweepInterval(), log)

	server := rpc.NewServer(engine, os.Getenv(rpcTokenEnv))
	log.Info("swapd listening", "address", cfg.ListenAddress, "chainMode", cfg.ChainMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(cfg.ListenAddress)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	}
}

func wireAdapters(ctx context.Context, cfg *config.Config, engine *swap.Engine) error {
	switch cfg.ChainMode {
	case config.ChainModeMemory:
		engine.RegisterAdapter(swap.ChainEth, memchain.NewAutoFunded(swap.ChainEth))
		engine.RegisterAdapter(swap.ChainDoge, memchain.NewAutoFunded(swap.ChainDoge))
	case config.ChainModeLive:
		ethAdapter, err := evm.New(ctx, evm.Config{
			RPCURL:          cfg.EVM.RPCURL,
			ContractAddress: cfg.EVM.ContractAddress,
			PrivateKeyHex:   os.Getenv("SWAPD_EVM_KEY"),
			GasLimit:        cfg.EVM.GasLimit,
		})
		if err != nil {
			return err
		}
		engine.RegisterAdapter(swap.ChainEth, ethAdapter)
		engine.RegisterAdapter(swap.ChainDoge, doged.New(doged.Config{
			URL:      cfg.Doge.RPCURL,
			Username: cfg.Doge.Username,
			Password: cfg.Doge.Password,
		}))
	default:
		return fmt.Errorf("unknown chain mode %q", cfg.ChainMode)
	}
	return nil
}

func runSweeper(ctx context.Context, engine *swap.Engine, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := engine.ExpireSweep(); expired > 0 {
				log.Info("expired orders swept", "count", expired)
			}
		}
	}
}
