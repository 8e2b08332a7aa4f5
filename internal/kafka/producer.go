package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-ecom-orders/internal/logging"
)

var logger = logging.New("kafka")

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

var ErrProducerClosed = errors.New("kafka producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues messages in memory and writes them from one goroutine.
// Writes are async; delivery failures are logged, not returned.
type Producer struct {
	w     messageWriter
	inbox chan kafka.Message
	quit  chan struct{}
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Str("topic", topic).Int("messages", len(msgs)).Msg("kafka write failed")
			}
		},
	}
	return newProducer(w, buf)
}

func newProducer(w messageWriter, buf int) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:     w,
		inbox: make(chan kafka.Message, buf),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the write loop. Cancelling ctx has the same effect as Close.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		stop := ctx.Done()
		for {
			select {
			case <-stop:
				p.Close()
				stop = nil
			case m, ok := <-p.inbox:
				if !ok {
					if err := p.w.Close(); err != nil {
						logger.Error().Err(err).Msg("kafka writer close")
					}
					return
				}
				if err := p.w.WriteMessages(context.Background(), m); err != nil {
					logger.Error().Err(err).Bytes("key", m.Key).Msg("kafka enqueue failed")
				}
			}
		}
	}()
}

// Publish enqueues one event; it blocks only while the buffer is full.
func (p *Producer) Publish(ctx context.Context, key []byte, eventType string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	m := kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderEventVersion, Value: []byte("1")},
		},
	}
	select {
	case p.inbox <- m:
		return nil
	case <-p.quit:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; queued ones are still flushed.
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		// releases publishers blocked on a full inbox before taking the lock
		close(p.quit)
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

// WaitClosed blocks until the queue is flushed and the writer closed.
func (p *Producer) WaitClosed() { <-p.done }
