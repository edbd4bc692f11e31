package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/uhyunpark/orderswap/params"
	"github.com/uhyunpark/orderswap/pkg/api"
	"github.com/uhyunpark/orderswap/pkg/app/swap"
	"github.com/uhyunpark/orderswap/pkg/app/token"
	"github.com/uhyunpark/orderswap/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Token ledgers ----
	tokens := token.NewRegistry()
	for _, tp := range cfg.Tokens {
		t := token.NewToken(tp.Symbol, tp.Name, tp.Decimals)
		if err := tokens.Register(t); err != nil {
			sugar.Fatalw("token_register_failed", "symbol", tp.Symbol, "err", err)
		}
	}
	sugar.Infow("tokens_registered", "count", tokens.Count())

	// ---- Escrow ledger ----
	store, err := swap.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	hub := api.NewHub()
	ledger, err := swap.NewLedger(store, cfg.Escrow.Custody, api.NewEventFeed(hub))
	if err != nil {
		sugar.Fatalw("ledger_init_failed", "err", err)
	}
	ledger.Logger = sugar

	for _, t := range tokens.List() {
		if err := ledger.RegisterAsset(t.Symbol, t); err != nil {
			sugar.Fatalw("asset_register_failed", "symbol", t.Symbol, "err", err)
		}
	}

	sugar.Infow("ledger_ready",
		"custody", cfg.Escrow.Custody.Hex(),
		"orders", ledger.Count(),
		"faucet", cfg.Faucet.Enabled)

	// ---- API ----
	server := api.NewServer(ledger, tokens, hub, api.Config{
		FaucetEnabled: cfg.Faucet.Enabled,
		FaucetAmount:  cfg.Faucet.Amount,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Node.ListenAddr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		sugar.Info("shutting down")
	case err := <-errCh:
		sugar.Fatalw("api_server_failed", "err", err)
	}
}
