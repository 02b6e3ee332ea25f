package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatedEvent is emitted once an order has all of its items reserved and persisted.
type CreatedEvent struct {
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId"`
	Total      decimal.Decimal `json:"total"`
	Items      []EventItem     `json:"items"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type EventItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (e CreatedEvent) AggregateID() string { return e.OrderID }
func (CreatedEvent) EventName() string { return "order.created" }

func NewCreatedEvent(o *Order) CreatedEvent {
	return CreatedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.Total,
		Items:      eventItems(o.Items),
		OccurredAt: time.Now().UTC(),
	}
}

// ConfirmedEvent is emitted when payment succeeds.
type ConfirmedEvent struct {
	OrderID       string          `json:"orderId"`
	TransactionID string          `json:"transactionId"`
	Total         decimal.Decimal `json:"total"`
	Attempts      int             `json:"attempts"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func (e ConfirmedEvent) AggregateID() string { return e.OrderID }
func (ConfirmedEvent) EventName() string { return "order.confirmed" }

func NewConfirmedEvent(o *Order, transactionID string, attempts int) ConfirmedEvent {
	return ConfirmedEvent{
		OrderID:       o.ID,
		TransactionID: transactionID,
		Total:         o.Total,
		Attempts:      attempts,
		OccurredAt:    time.Now().UTC(),
	}
}

// CancelledEvent is emitted after every item has been restocked.
type CancelledEvent struct {
	OrderID    string      `json:"orderId"`
	Items      []EventItem `json:"items"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func (e CancelledEvent) AggregateID() string { return e.OrderID }
func (CancelledEvent) EventName() string { return "order.cancelled" }

func NewCancelledEvent(o *Order) CancelledEvent {
	return CancelledEvent{
		OrderID:    o.ID,
		Items:      eventItems(o.Items),
		OccurredAt: time.Now().UTC(),
	}
}

// CreationFailedEvent is emitted when creation aborted and its reservations were released.
type CreationFailedEvent struct {
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e CreationFailedEvent) AggregateID() string { return e.OrderID }
func (CreationFailedEvent) EventName() string { return "order.creation_failed" }

func NewCreationFailedEvent(orderID, userID, reason string) CreationFailedEvent {
	return CreationFailedEvent{
		OrderID:    orderID,
		UserID:     userID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

func eventItems(items []Item) []EventItem {
	out := make([]EventItem, 0, len(items))
	for _, it := range items {
		out = append(out, EventItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return out
}
