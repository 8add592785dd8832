// Package app holds the wiring shared by the storefront binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ariefcatur/go-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/ariefcatur/go-storefront/internal/sqlite"
)

// NewLogger returns a JSON slog logger tagged with the service name.
func NewLogger(w io.Writer, cfg config.Config) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})
	return slog.New(h).With("service", cfg.ServiceName)
}

// OpenStore opens the store selected by cfg.StoreDriver. With migrate set the
// Postgres schema is applied; the SQLite schema is always applied on open.
func OpenStore(ctx context.Context, cfg config.Config, migrate bool) (shop.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return postgres.NewStore(pool), pool.Close, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenCache connects to Redis when REDIS_ADDR is set. Without it the returned
// cache is nil and every cache call degrades to a miss.
func OpenCache(ctx context.Context, cfg config.Config, log *slog.Logger) (*redisx.Cache, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	rdb := redisx.New(cfg.RedisAddr)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WarnContext(ctx, "redis unreachable, continuing", "addr", cfg.RedisAddr, "error", err)
	}
	return redisx.NewCache(rdb), func() { _ = rdb.Close() }
}

// OpenPublisher starts a Kafka producer when KAFKA_BROKERS is set. The stop
// function flushes queued events; it must run after ctx-driven work is done.
func OpenPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (shop.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, func() {}
	}
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)
	return prod, func() {
		prod.Close() // tutup inbox -> flush & close writer
		prod.WaitClosed()
	}
}
