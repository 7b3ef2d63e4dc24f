package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uhyunpark/cdabook/params"
	"github.com/uhyunpark/cdabook/pkg/api"
	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
	"github.com/uhyunpark/cdabook/pkg/app/market"
	"github.com/uhyunpark/cdabook/pkg/broker"
	"github.com/uhyunpark/cdabook/pkg/storage"
	"github.com/uhyunpark/cdabook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.LogFile, cfg.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile, "verbose", cfg.Verbose)

	// ---- Storage: trade journal ----
	var journal storage.Journal
	if cfg.Storage.DataDir != "" {
		pj, err := storage.NewPebbleJournal(cfg.Storage.DataDir)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "dir", cfg.Storage.DataDir, "err", err)
		}
		journal = pj
		sugar.Infow("journal_opened", "dir", cfg.Storage.DataDir)
	} else {
		journal = storage.NewInMemoryJournal()
		sugar.Info("journal_in_memory - trades are not persisted")
	}
	defer journal.Close()

	// ---- Broker: Kafka trade stream (optional) ----
	var sinks []market.TradeSink
	if len(cfg.Kafka.Brokers) > 0 {
		pub := broker.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer pub.Close()
		sinks = append(sinks, pub)
		sugar.Infow("kafka_publisher_enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// ---- App: CDA market ----
	app := market.NewApp(market.Options{
		Logger:  sugar.Named("market"),
		Journal: journal,
		Sinks:   sinks,
	})

	catalog := params.Catalog{}
	if cfg.Market.GoodsFile != "" {
		catalog, err = params.LoadGoods(cfg.Market.GoodsFile)
		if err != nil {
			sugar.Fatalw("goods_load_failed", "file", cfg.Market.GoodsFile, "err", err)
		}
		if err := app.Endow(catalog); err != nil {
			sugar.Fatalw("endow_failed", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Order Feeder (optional) ----
	// Enable with: ENABLE_FEEDER=true FEEDER_ORDERS_PER_TICK=10 FEEDER_INTERVAL_MS=100
	if cfg.Feeder.Enabled {
		cancelFeeder := market.StartFeeder(ctx, app, feederConfig(cfg.Feeder, catalog))
		defer cancelFeeder()
	} else {
		sugar.Info("feeder_disabled - orders arrive over the API only")
	}

	// ---- API Server ----
	apiServer := api.NewServer(app, cfg.API.CORSOrigins, sugar.Named("api"))

	// Hook app to API server: broadcast trades and books after each cycle
	app.OnTrade = apiServer.BroadcastTrade
	app.OnMatch = func(good string, _ []orderbook.Trade) {
		apiServer.BroadcastBook(good)
	}

	go func() {
		if err := apiServer.Start(ctx, cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("marketd_starting",
		"goods", len(catalog.Goods),
		"agents", len(catalog.Agents),
		"match_interval_ms", cfg.Market.MatchInterval.Milliseconds())

	// Matching cycle blocks until shutdown
	if err := app.Run(ctx, cfg.Market.MatchInterval); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("match_loop_failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api_shutdown_failed", "err", err)
	}
	sugar.Infow("marketd_stopped", "cycles", app.Cycles(), "settled", app.Ledger().Settled())
}

func feederConfig(f params.Feeder, catalog params.Catalog) market.FeederConfig {
	fc := market.DefaultFeederConfig()
	fc.OrdersPerTick = f.OrdersPerTick
	fc.Interval = f.Interval
	fc.NumAgents = f.NumAgents
	if names := catalog.GoodNames(); len(names) > 0 {
		fc.Goods = names
		fc.BasePrice = catalog.Goods[0].ReferencePrice
	}
	return fc
}
