package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when m was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r          messageReader
	workers    int
	backoff    time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commits are explicit and synchronous
	})
	return newConsumer(r, workers)
}

func newConsumer(r messageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, backoff: 200 * time.Millisecond, maxBackoff: 5 * time.Second}
}

// Start dispatches messages until ctx is cancelled. A partition always maps to
// the same worker, so its messages are handled and committed in offset order.
// A failing message is retried with backoff and holds back the rest of its
// partition; nothing past it is committed. Workers are drained before the
// reader is closed.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				// once ctx ends an unhandled message may precede m
				if ctx.Err() != nil {
					continue
				}
				c.handle(ctx, id, h, m)
			}
		}(i, lanes[i])
	}
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
		if err := c.r.Close(); err != nil {
			logger.Warn().Err(err).Msg("kafka reader close")
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case lanes[m.Partition%len(lanes)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle retries h until it succeeds or ctx ends, and commits only on success.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) {
	log := logger.With().
		Int("worker", worker).
		Str("topic", m.Topic).
		Int("partition", m.Partition).
		Int64("offset", m.Offset).
		Logger()

	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			log.Warn().Err(err).Msg("handler failed at shutdown; left uncommitted")
			return
		}
		log.Error().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("handler failed")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		wait = min(wait*2, c.maxBackoff)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("commit failed")
	}
}
