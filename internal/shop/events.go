package shop

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

// PartitionKey = order id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID int64           `json:"product_id"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Items       []ItemPrice     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

// Publisher delivers an envelope to topic. Implementations must not block on
// the broker; delivery is best effort after the database commit.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, env Envelope) error
}

// NewEnvelope wraps payload into a version 1 envelope.
func NewEnvelope(eventType, producer string, orderID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       b,
	}, nil
}

func orderCreatedPayload(o Order) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, Price: it.Price})
	}
	return OrderCreatedPayload{OrderID: o.ID, UserID: o.UserID, Items: items, TotalAmount: o.TotalAmount}
}

type traceKey struct{}

// WithTraceID attaches a request id that is copied into published envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
