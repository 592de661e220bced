package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tradesim/params"
	"tradesim/pkg/account"
	"tradesim/pkg/api"
	"tradesim/pkg/market"
	"tradesim/pkg/sim"
	"tradesim/pkg/storage"
	"tradesim/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Storage.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Storage.LogFile)

	// ---- Storage ----
	// One store handle for the whole process, opened here and closed on
	// shutdown. Everything downstream gets it injected.
	store, err := storage.NewStore(cfg.Storage.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Storage.DBPath, "err", err)
	}
	defer store.Close()
	sugar.Infow("store_opened", "path", cfg.Storage.DBPath)

	// ---- Domain ----
	accounts := account.NewFacade(store, sugar)
	mgr := sim.NewManager(store, accounts, sugar)
	feed := market.NewFeed(cfg.Market.Symbols, cfg.Market.QuoteInterval, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Daily cleanup ----
	sched := sim.NewScheduler(mgr, util.RealClock{}, cfg.Cleanup.HourUTC, sugar)
	go sched.Run(ctx)

	// ---- Mock price feed ----
	go feed.Run(ctx)

	// ---- API server ----
	watchlists := api.WatchlistStore{
		Save: store.SaveWatchlist,
		Load: store.LoadWatchlist,
	}
	server := api.NewServer(mgr, accounts, feed, watchlists, cfg.API.CORSOrigins, sugar)

	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("tradesim_started",
		"addr", cfg.API.Addr,
		"symbols", len(cfg.Market.Symbols),
		"cleanup_hour_utc", cfg.Cleanup.HourUTC)

	<-ctx.Done()
	sugar.Info("shutting down")
}
