package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-ecom-orders/internal/aws"
	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	"github.com/ariefcatur/go-ecom-orders/internal/config"
	"github.com/ariefcatur/go-ecom-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-ecom-orders/internal/kafka"
	"github.com/ariefcatur/go-ecom-orders/internal/logging"
	"github.com/ariefcatur/go-ecom-orders/internal/memstore"
	"github.com/ariefcatur/go-ecom-orders/internal/orders"
	"github.com/ariefcatur/go-ecom-orders/internal/postgres"
	"github.com/ariefcatur/go-ecom-orders/internal/redisx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "shop-api")
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		productStore catalog.Store
		orderRepo    orders.Repository
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		db := memstore.New()
		productStore, orderRepo = db.Products(), db.Orders()
		log.Warn().Msg("using in-memory store; data is lost on exit")
	default:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("db connect")
		}
		defer pool.Close()
		gdb, err := postgres.OpenGorm(pool)
		if err != nil {
			log.Fatal().Err(err).Msg("gorm open")
		}
		if err := postgres.Migrate(ctx, gdb); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		productStore, orderRepo = postgres.NewProductRepo(gdb), postgres.NewOrderRepo(gdb)
	}

	// Redis: product cache and idempotency keys
	var cache catalog.Cache = catalog.NoCache
	opts := []orders.Option{}
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis not reachable yet")
		}
		cache = catalog.NewRedisCache(rdb, cfg.ProductCacheTTL)
		opts = append(opts,
			orders.WithIdempotency(orders.NewRedisIdempotency(rdb, redisx.TTLIdempotency)),
			orders.WithProductCache(cache),
		)
	} else if cfg.StoreBackend == config.BackendMemory {
		opts = append(opts, orders.WithIdempotency(memstore.NewIdempotency()))
	}

	// Event sink
	var prod *kafkax.Producer
	switch cfg.EventSink {
	case config.SinkKafka:
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
		prod.Start(context.Background())
		opts = append(opts, orders.WithEvents(prod, cfg.ServiceName))
	case config.SinkSQS:
		awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("aws config")
		}
		pub := aws.NewPublisher(aws.NewSQSClient(awsCfg, cfg.SQSEndpoint), cfg.SQSQueueURL)
		opts = append(opts, orders.WithEvents(pub, cfg.ServiceName))
	}

	products := catalog.NewService(productStore, cache, cfg.MaxImageBytes)
	ords := orders.NewService(orderRepo, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(products, ords),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.StoreBackend).Str("events", cfg.EventSink).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server")
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}
