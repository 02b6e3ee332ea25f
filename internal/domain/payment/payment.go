package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	ErrPaymentFailed      = errors.New("payment: charge declined")
	ErrPaymentUnavailable = errors.New("payment: gateway unavailable")
)

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency.String()
}

type Result struct {
	TransactionID string
}

// Gateway charges an order. Each call may independently succeed or fail.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amount Money) (Result, error)
}

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
