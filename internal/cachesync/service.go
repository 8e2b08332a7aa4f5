// Package cachesync keeps the product read cache in step with stock changes
// made by order placement on any API instance.
package cachesync

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	kafkax "github.com/ariefcatur/go-ecom-orders/internal/kafka"
	"github.com/ariefcatur/go-ecom-orders/internal/logging"
	"github.com/ariefcatur/go-ecom-orders/internal/orders"
	"github.com/ariefcatur/go-ecom-orders/internal/redisx"
)

var logger = logging.New("cachesync")

type Service struct {
	Cache       catalog.Cache
	Redis       redis.Cmdable
	ServiceName string
}

// HandleOrderPlaced evicts every product touched by the order. Undecodable
// messages are logged and skipped so they do not block the partition.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	if et, ok := kafkax.Header(m, kafkax.HeaderEventType); ok && et != orders.EventOrderPlaced {
		return nil
	}

	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		logger.Warn().Err(err).Int64("offset", m.Offset).Msg("skipping undecodable envelope")
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		logger.Warn().Err(err).Str("event_id", env.EventID).Msg("skipping undecodable payload")
		return nil
	}

	dkey := redisx.DedupKey(s.ServiceName, env.EventID)
	won, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !won {
		logger.Debug().Str("event_id", env.EventID).Msg("duplicate event")
		return nil
	}

	ids := p.ProductIDs()
	if err := s.Cache.Evict(ctx, ids...); err != nil {
		// let a redelivery try again
		if derr := s.Redis.Del(ctx, dkey).Err(); derr != nil {
			logger.Warn().Err(derr).Str("key", dkey).Msg("release dedup key")
		}
		return err
	}
	logger.Info().
		Str("order_code", p.OrderCode).
		Ints64("product_ids", ids).
		Msg("product cache evicted")
	return nil
}
