package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/app"
	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := app.NewLogger(os.Stderr, cfg)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	store, closeStore, err := app.OpenStore(ctx, cfg, true)
	if err != nil {
		log.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Redis & Kafka (optional)
	cache, closeCache := app.OpenCache(ctx, cfg, log)
	defer closeCache()
	pub, stopPub := app.OpenPublisher(ctx, cfg, log)

	// domain & handlers
	var revoker auth.Revoker
	if cache != nil {
		revoker = cache
	}
	router := httpx.NewRouter(log)
	httpx.Mount(router, httpx.Deps{
		Catalog: shop.NewCatalog(store),
		Cart:    shop.NewCart(store),
		Orders:  shop.NewOrders(store, pub, cfg.ServiceName, log),
		Users:   auth.NewService(store),
		Tokens:  auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL, revoker),
		Cache:   cache,
		Log:     log,
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "driver", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	stopPub() // flush event yang masih antri
	cancel()
}
