package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/segmentio/kafka-go"
)

var (
	ErrInboxFull      = errors.New("kafka producer inbox full")
	ErrProducerClosed = errors.New("kafka producer closed")
)

// Producer writes envelopes asynchronously. Publish only enqueues; a single
// goroutine started by Start drains the inbox into the writer.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *slog.Logger

	mu     sync.RWMutex // guards closed and sends on inbox
	closed bool
}

var _ shop.Publisher = (*Producer)(nil)

func NewProducer(brokers []string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.markClosed()
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

// drain flushes whatever is still queued without blocking on new publishes.
func (p *Producer) drain() {
	for {
		select {
		case m, ok := <-p.inbox:
			if !ok {
				_ = p.w.Close()
				return
			}
			p.write(m)
		default:
			_ = p.w.Close()
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka write", "topic", m.Topic, "key", string(m.Key), "error", err)
	}
}

// Publish implements shop.Publisher.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, env shop.Envelope) error {
	value, err := Marshal(env)
	if err != nil {
		return err
	}
	m := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- m:
		return nil
	default:
		return ErrInboxFull
	}
}

// markClosed makes later Publish calls fail; it reports whether it was the
// first call.
func (p *Producer) markClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	return true
}

// Tutup channel supaya goroutine nge-flush sisa pesan lalu exit rapi.
// Publish setelah Close mengembalikan ErrProducerClosed; Close boleh dipanggil berulang.
func (p *Producer) Close() {
	if p.markClosed() {
		close(p.inbox)
	}
}

// Tunggu sampai goroutine selesai.
func (p *Producer) WaitClosed() { <-p.closeCh }
