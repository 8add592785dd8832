package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront/internal/app"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/fulfillment"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.ServiceName += "-fulfillment"
	log := app.NewLogger(os.Stderr, cfg)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	store, closeStore, err := app.OpenStore(ctx, cfg, false)
	if err != nil {
		log.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Redis
	cache, closeCache := app.OpenCache(ctx, cfg, log)
	defer closeCache()

	// status_changed dipublish lewat producer terpisah
	pub, stopPub := app.OpenPublisher(ctx, cfg, log)

	svc := &fulfillment.Service{
		Orders:      shop.NewOrders(store, pub, cfg.ServiceName, log),
		ServiceName: cfg.ServiceName,
		Log:         log,
	}
	if cache != nil {
		svc.Dedup = cache
		svc.Cache = cache
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.FulfillmentGroup, shop.TopicOrderCreated, cfg.FulfillmentWorkers, log)
	done := make(chan struct{})
	var consumeErr error
	go func() {
		defer close(done)
		log.Info("fulfillment consumer started",
			"group", cfg.FulfillmentGroup, "topic", shop.TopicOrderCreated, "workers", cfg.FulfillmentWorkers)
		// offset yang gagal tidak di-commit; restart akan mengulangnya
		if consumeErr = cons.Start(ctx, svc.HandleOrderCreated); consumeErr != nil {
			log.Error("consumer exit", "error", consumeErr)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer...")
	cancel()
	<-done
	stopPub()
	if consumeErr != nil {
		closeCache()
		closeStore()
		os.Exit(1)
	}
}
