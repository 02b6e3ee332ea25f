package order

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: already exists")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("order: price must be zero or greater")
	ErrNoItems           = errors.New("order: at least one item is required")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

var validStatuses = map[Status]struct{}{
	StatusPending:   {},
	StatusConfirmed: {},
	StatusCancelled: {},
}

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validStatuses[st]; !ok {
		return "", fmt.Errorf("order: unknown status %q", s)
	}
	return st, nil
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Item is a line of an order. Price is the product price captured when the item was attached.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID        string
	UserID    string
	Status    Status
	Total     decimal.Decimal
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an empty PENDING order shell.
func New(id, userID string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:        id,
		UserID:    userID,
		Status:    StatusPending,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AttachItem appends a line with a frozen price and adds its subtotal to the total.
func (o *Order) AttachItem(itemID, productID string, quantity int, price decimal.Decimal) (Item, error) {
	if quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	if price.IsNegative() {
		return Item{}, ErrInvalidPrice
	}
	if o.Status != StatusPending {
		return Item{}, ErrInvalidTransition
	}
	item := Item{
		ID:        itemID,
		OrderID:   o.ID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
	}
	o.Items = append(o.Items, item)
	o.Total = o.Total.Add(item.Subtotal())
	o.touch()
	return item, nil
}

// ItemsTotal recomputes the sum of item subtotals.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (o *Order) Confirm() error {
	next, err := stateFor(o.Status).Confirm(o)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

func (o *Order) Cancel() error {
	next, err := stateFor(o.Status).Cancel(o)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

// CanProcessPayment reports whether a charge may be attempted.
func (o *Order) CanProcessPayment() bool {
	return o.Status == StatusPending
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = slices.Clone(o.Items)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
