package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ariefcatur/go-ecom-orders/internal/cachesync"
	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	"github.com/ariefcatur/go-ecom-orders/internal/config"
	kafkax "github.com/ariefcatur/go-ecom-orders/internal/kafka"
	"github.com/ariefcatur/go-ecom-orders/internal/logging"
	"github.com/ariefcatur/go-ecom-orders/internal/orders"
	"github.com/ariefcatur/go-ecom-orders/internal/redisx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "shop-worker")
		log.Fatal().Err(err).Msg("config")
	}
	name := cfg.ServiceName + "-cachesync"
	logging.Setup(cfg.LogLevel, name)

	if cfg.RedisAddr == "" {
		log.Fatal().Msg("REDIS_ADDR is required: the worker only maintains the product cache")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &cachesync.Service{
		Cache:       catalog.NewRedisCache(rdb, cfg.ProductCacheTTL),
		Redis:       rdb,
		ServiceName: name,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicOrderPlaced, cfg.WorkerCount)
	log.Info().
		Str("group", cfg.WorkerGroup).
		Str("topic", orders.TopicOrderPlaced).
		Int("workers", cfg.WorkerCount).
		Msg("cache sync consumer started")

	if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
		log.Error().Err(err).Msg("consumer exit")
		os.Exit(1)
	}
	log.Info().Msg("consumer stopped")
}
