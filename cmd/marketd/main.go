package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"marketchain/config"
	"marketchain/core/state"
	"marketchain/native/bank"
	"marketchain/native/market"
	"marketchain/observability/logging"
	"marketchain/rpc"
	"marketchain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MARKETD_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.String("dir", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ledger := bank.NewLedger()

	engine := market.NewEngine()
	engine.SetState(state.NewManager(db))
	engine.SetSettler(ledger)
	engine.SetBalanceSource(ledger)
	engine.SetEmitter(eventLogger{log: logger})

	if err := engine.BootstrapFees(cfg.Areas, cfg.Denom, cfg.LocalFeeAmount(), cfg.RemoteFeeAmount()); err != nil {
		logger.Error("failed to bootstrap fee schedule", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engine, ledger, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
