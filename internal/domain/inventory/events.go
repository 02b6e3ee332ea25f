package inventory

import "time"

// StockReservedEvent is emitted when stock is reserved for an order.
type StockReservedEvent struct {
	OrderID    string    `json:"orderId,omitempty"`
	ProductID  string    `json:"productId"`
	Quantity   int       `json:"quantity"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e StockReservedEvent) AggregateID() string { return e.ProductID }
func (StockReservedEvent) EventName() string { return "inventory.reserved" }

func NewStockReservedEvent(orderID, productID string, quantity int) StockReservedEvent {
	return StockReservedEvent{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		OccurredAt: time.Now().UTC(),
	}
}

// StockRestockedEvent is emitted when stock is returned, either by compensation or catalog maintenance.
type StockRestockedEvent struct {
	OrderID    string    `json:"orderId,omitempty"`
	ProductID  string    `json:"productId"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e StockRestockedEvent) AggregateID() string { return e.ProductID }
func (StockRestockedEvent) EventName() string { return "inventory.restocked" }

const (
	RestockReasonCancellation = "order_cancelled"
	RestockReasonCompensation = "saga_compensation"
	RestockReasonMaintenance  = "catalog_maintenance"
)

func NewStockRestockedEvent(orderID, productID string, quantity int, reason string) StockRestockedEvent {
	return StockRestockedEvent{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
