package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/shop"
	kafkago "github.com/segmentio/kafka-go"
)

// Deduper claims an event id so concurrent or repeated deliveries run once.
type Deduper interface {
	FirstDelivery(ctx context.Context, service, eventID string) (bool, error)
	ForgetDelivery(ctx context.Context, service, eventID string) error
}

// StatusCache is invalidated after the worker changes an order's status.
type StatusCache interface {
	ForgetOrderStatus(ctx context.Context, orderID int64) error
}

// Service confirms freshly created orders. Payment is simulated: every
// pending order is accepted, then stock is decremented for each line.
type Service struct {
	Orders      *shop.Orders
	Dedup       Deduper
	Cache       StatusCache
	ServiceName string
	Log         *slog.Logger
}

// ErrMalformed marks an event that can never be processed.
var ErrMalformed = errors.New("malformed event")

// HandleOrderCreated is the consumer handler for shop.TopicOrderCreated.
// Malformed messages are logged and dropped so they do not stall the
// partition; any other error is returned for the consumer to retry.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err == nil && env.EventType != shop.EventOrderCreated {
		return nil
	}
	if err == nil {
		err = s.Process(ctx, env)
	} else {
		err = fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if errors.Is(err, ErrMalformed) {
		s.logger().ErrorContext(ctx, "dropping malformed event",
			"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
		return nil
	}
	return err
}

// Process handles one OrderCreated envelope. Redelivered events are skipped;
// a failed attempt releases its claim so the redelivery is processed.
func (s *Service) Process(ctx context.Context, env shop.Envelope) error {
	if s.Dedup != nil {
		first, err := s.Dedup.FirstDelivery(ctx, s.ServiceName, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
	}
	err := s.confirm(ctx, env)
	if err != nil && s.Dedup != nil {
		_ = s.Dedup.ForgetDelivery(ctx, s.ServiceName, env.EventID)
	}
	return err
}

func (s *Service) confirm(ctx context.Context, env shop.Envelope) error {
	p, err := kafkax.UnwrapPayload[shop.OrderCreatedPayload](env.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ctx = shop.WithTraceID(ctx, env.TraceID)

	// status dicek ulang & stok dipotong dalam satu tx
	order, confirmed, err := s.Orders.Confirm(ctx, p.OrderID)
	if errors.Is(err, shop.ErrNotFound) && !shop.IsTransaction(err) {
		s.logger().WarnContext(ctx, "order from event not found", "order_id", p.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("confirm order %d: %w", p.OrderID, err)
	}
	if !confirmed {
		// sudah diproses / dibatalkan manual
		return nil
	}
	if s.Cache != nil {
		_ = s.Cache.ForgetOrderStatus(ctx, order.ID)
	}
	s.logger().InfoContext(ctx, "order confirmed", "order_id", order.ID, "items", len(order.Items))
	return nil
}

func (s *Service) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}
