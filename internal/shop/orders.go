package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Orders converts carts into orders and serves order history.
type Orders struct {
	Store     Store
	Publisher Publisher // optional
	Producer  string    // service name stamped on events
	Log       *slog.Logger
}

func NewOrders(s Store, pub Publisher, producer string, log *slog.Logger) *Orders {
	if log == nil {
		log = slog.Default()
	}
	return &Orders{Store: s, Publisher: pub, Producer: producer, Log: log}
}

// Checkout turns the user's cart into a pending order priced at the current
// product prices and empties the cart. Reading the cart, writing the order and
// its items and clearing the cart happen in one transaction holding the cart
// lock, so a concurrent checkout of the same cart finds it empty.
func (o *Orders) Checkout(ctx context.Context, userID int64, shippingAddress string) (Order, error) {
	shippingAddress = strings.TrimSpace(shippingAddress)
	if shippingAddress == "" {
		return Order{}, &ValidationError{Field: "shipping_address", Message: "required"}
	}

	var order Order
	err := o.Store.InTx(ctx, func(q Queries) error {
		if err := q.LockCart(ctx, userID); err != nil {
			return err
		}
		items, err := q.CartItems(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		// harga diambil dari baris yang sama dengan total, di dalam tx
		order = Order{
			UserID:          userID,
			TotalAmount:     ComputeTotal(items),
			Status:          StatusPending,
			ShippingAddress: shippingAddress,
		}
		if err := q.InsertOrder(ctx, &order); err != nil {
			return err
		}
		order.Items = make([]OrderItem, 0, len(items))
		for _, ci := range items {
			p := ci.Product
			it := OrderItem{
				OrderID:   order.ID,
				ProductID: ci.ProductID,
				Quantity:  ci.Quantity,
				Price:     p.Price,
				Product:   &p,
			}
			if err := q.InsertOrderItem(ctx, &it); err != nil {
				return err
			}
			order.Items = append(order.Items, it)
		}
		return q.ClearCart(ctx, userID)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrNotFound):
		// ErrNotFound: user tidak ada
		return Order{}, err
	default:
		return Order{}, &TransactionError{Op: "checkout", Err: err}
	}

	o.Log.InfoContext(ctx, "order created",
		"order_id", order.ID, "user_id", userID, "items", len(order.Items), "total", order.TotalAmount.String())
	o.publish(ctx, TopicOrderCreated, EventOrderCreated, order.ID, orderCreatedPayload(order))
	return order, nil
}

// GetOrder returns the order with its items.
func (o *Orders) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	return o.Store.OrderByID(ctx, orderID)
}

// GetOrderForUser is GetOrder restricted to the owner; other users get ErrNotFound.
func (o *Orders) GetOrderForUser(ctx context.Context, userID, orderID int64) (Order, error) {
	ord, err := o.Store.OrderByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if ord.UserID != userID {
		return Order{}, ErrNotFound
	}
	return ord, nil
}

// ListOrdersForUser returns the user's orders with their items, newest first.
func (o *Orders) ListOrdersForUser(ctx context.Context, userID int64) ([]Order, error) {
	return o.Store.OrdersByUser(ctx, userID)
}

// UpdateStatus overwrites the order status. Any known status is accepted from
// any other; see CanTransition for the forward graph.
func (o *Orders) UpdateStatus(ctx context.Context, orderID int64, status Status) (Order, error) {
	if !status.Valid() {
		return Order{}, &ValidationError{Field: "status", Message: "unknown status " + string(status)}
	}
	var (
		ord  Order
		from Status
	)
	err := o.Store.InTx(ctx, func(q Queries) error {
		var err error
		ord, err = q.OrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		from = ord.Status
		if err := q.SetOrderStatus(ctx, orderID, status); err != nil {
			return err
		}
		ord.Status = status
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if from != status {
		o.Log.InfoContext(ctx, "order status changed", "order_id", orderID, "from", from, "to", status)
		o.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID,
			OrderStatusChangedPayload{OrderID: orderID, From: from, To: status})
	}
	return ord, nil
}

// Confirm moves a pending order to confirmed and takes each line's quantity
// out of stock, all in one transaction: a failed stock update leaves the order
// pending. It reports confirmed=false, without error, when the order is no
// longer in a state that can be confirmed.
func (o *Orders) Confirm(ctx context.Context, orderID int64) (ord Order, confirmed bool, err error) {
	var from Status
	err = o.Store.InTx(ctx, func(q Queries) error {
		var err error
		ord, err = q.OrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		from = ord.Status
		if !CanTransition(from, StatusConfirmed) {
			return nil
		}
		if err := q.SetOrderStatus(ctx, orderID, StatusConfirmed); err != nil {
			return err
		}
		for _, it := range ord.Items {
			if _, err := q.AdjustStock(ctx, it.ProductID, -it.Quantity); err != nil {
				return fmt.Errorf("adjust stock of product %d: %w", it.ProductID, err)
			}
		}
		ord.Status = StatusConfirmed
		confirmed = true
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound) && ord.ID == 0:
		return Order{}, false, err
	default:
		return Order{}, false, &TransactionError{Op: "confirm", Err: err}
	}
	if !confirmed {
		return ord, false, nil
	}
	o.Log.InfoContext(ctx, "order status changed", "order_id", orderID, "from", from, "to", StatusConfirmed)
	o.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID,
		OrderStatusChangedPayload{OrderID: orderID, From: from, To: StatusConfirmed})
	return ord, true, nil
}

func (o *Orders) publish(ctx context.Context, topic, eventType string, orderID int64, payload any) {
	if o.Publisher == nil {
		return
	}
	env, err := NewEnvelope(eventType, o.Producer, orderID, payload)
	if err != nil {
		o.Log.ErrorContext(ctx, "encode event", "event", eventType, "order_id", orderID, "error", err)
		return
	}
	env.TraceID = traceID(ctx)
	if err := o.Publisher.Publish(ctx, topic, PartitionKey(orderID), env); err != nil {
		o.Log.WarnContext(ctx, "publish event", "event", eventType, "order_id", orderID, "error", err)
	}
}
