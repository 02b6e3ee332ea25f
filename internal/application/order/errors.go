package order

import (
	"errors"
	"fmt"

	domcatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	domuser "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/user"
)

var (
	ErrNotFound                = domain.ErrNotFound
	ErrInvalidTransition       = domain.ErrInvalidTransition
	ErrRepository              = errors.New("order: repository failure")
	ErrPaymentRetriesExhausted = errors.New("order: payment retries exhausted")
	ErrRestockIncomplete       = errors.New("order: cancelled with restock incomplete")
)

// Kind groups errors by how callers should react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// KindOf classifies err. NotFound and Validation are never retried.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrRestockIncomplete):
		// the order is already CANCELLED; Resume finishes the job
		return KindTransient
	case errors.Is(err, domuser.ErrNotFound),
		errors.Is(err, domcatalog.ErrProductNotFound),
		errors.Is(err, domcatalog.ErrCategoryNotFound),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound):
		return KindNotFound
	case errors.Is(err, dominv.ErrInsufficientStock),
		errors.Is(err, dominv.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrNoItems),
		errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, dompay.ErrPaymentFailed),
		errors.Is(err, dompay.ErrPaymentUnavailable),
		errors.Is(err, ErrPaymentRetriesExhausted):
		return KindTransient
	default:
		return KindUnknown
	}
}

var ErrValidation = errors.New("validation")

func newValidation(msg string) error {
	return fmt.Errorf("%w: %w", ErrValidation, errors.New(msg))
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return err
	case errors.Is(err, domain.ErrConflict):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

// InsufficientStockError is returned by Create when a line cannot be reserved.
type InsufficientStockError = dominv.InsufficientStockError
