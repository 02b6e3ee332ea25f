package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/currency"
)

const (
	useCaseOrderPayment = "order.payment"
	paymentPeer         = "payment_gateway"
)

// RetryPolicy bounds the charge loop. The wait after attempt n (zero based) is BaseDelay << n.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

type ProcessPaymentInput struct {
	OrderID string
}

type ProcessPaymentResult struct {
	OrderID       string        `json:"orderId"`
	Status        domain.Status `json:"status"`
	TransactionID string        `json:"transactionId"`
	Attempts      int           `json:"attempts"`
}

type PaymentOption func(*ProcessPaymentUseCase)

func WithRetryPolicy(p RetryPolicy) PaymentOption {
	return func(uc *ProcessPaymentUseCase) {
		if p.MaxAttempts > 0 {
			uc.policy.MaxAttempts = p.MaxAttempts
		}
		if p.BaseDelay >= 0 {
			uc.policy.BaseDelay = p.BaseDelay
		}
	}
}

func WithSleeper(s Sleeper) PaymentOption {
	return func(uc *ProcessPaymentUseCase) {
		if s != nil {
			uc.sleep = s
		}
	}
}

// ProcessPaymentUseCase charges a PENDING order and confirms it.
type ProcessPaymentUseCase struct {
	repo      domain.Repository
	gateway   dompay.Gateway
	currency  currency.Unit
	publisher domoutbox.Publisher
	policy    RetryPolicy
	sleep     Sleeper
	attempts  observability.Counter
	obs       application.Instruments
}

func NewProcessPaymentUseCase(
	repo domain.Repository,
	gateway dompay.Gateway,
	unit currency.Unit,
	publisher domoutbox.Publisher,
	tel observability.Observability,
	opts ...PaymentOption,
) *ProcessPaymentUseCase {
	uc := &ProcessPaymentUseCase{
		repo:      repo,
		gateway:   gateway,
		currency:  unit,
		publisher: publisher,
		policy:    DefaultRetryPolicy(),
		sleep:     sleepContext,
		obs:       application.NewInstruments(tel, orderService),
	}
	uc.attempts = uc.obs.Counter(observability.MPaymentAttempts)
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ProcessPaymentUseCase) Execute(ctx context.Context, in ProcessPaymentInput) (_ *ProcessPaymentResult, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseOrderPayment, "ProcessPayment", attribute.String("order.id", in.OrderID))
	run.Add(observability.F("order_id", in.OrderID))
	defer func() { run.End(err) }()

	if in.OrderID == "" {
		run.Fail("INPUT_INVALID")
		return nil, newValidation("order id is required")
	}

	entity, err := uc.repo.Get(ctx, in.OrderID)
	if err != nil {
		run.Fail(lookupStatus(err, "ORDER"))
		return nil, wrapRepositoryError(err)
	}
	if !entity.CanProcessPayment() {
		run.Fail("ORDER_NOT_PENDING")
		return nil, fmt.Errorf("order: pay %s in status %s: %w", entity.ID, entity.Status, ErrInvalidTransition)
	}

	amount := dompay.Money{Amount: entity.Total, Currency: uc.currency}
	run.Span().SetAttributes(attribute.String("payment.amount", amount.String()))

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < uc.policy.MaxAttempts; attempt++ {
		attempts = attempt + 1
		res, chargeErr := uc.charge(ctx, entity.ID, amount, attempts)
		if chargeErr == nil {
			run.Add(observability.F("attempts", attempts))
			return uc.confirm(ctx, run, entity.ID, res.TransactionID, attempts)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			run.Fail("CANCELED")
			run.Add(observability.F("attempts", attempts))
			return nil, fmt.Errorf("order: charge %s: %w", entity.ID, ctxErr)
		}
		lastErr = chargeErr
		if dompay.IsFatal(chargeErr) {
			run.Fail("PAYMENT_REJECTED")
			run.Add(observability.F("attempts", attempts))
			return nil, fmt.Errorf("order: charge %s: %w", entity.ID, chargeErr)
		}

		delay := uc.policy.Delay(attempt)
		run.Logger().Warn("payment_attempt_failed",
			observability.F("order_id", entity.ID),
			observability.F("attempt", attempts),
			observability.F("retry_in_seconds", delay.Seconds()),
			observability.F("error", chargeErr.Error()),
		)
		if sleepErr := uc.sleep(ctx, delay); sleepErr != nil {
			run.Fail("CANCELED")
			run.Add(observability.F("attempts", attempts))
			return nil, errors.Join(sleepErr, lastErr)
		}
	}

	run.Fail("PAYMENT_RETRIES_EXHAUSTED")
	run.Add(observability.F("attempts", attempts))
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrPaymentRetriesExhausted, attempts, lastErr)
}

func (uc *ProcessPaymentUseCase) charge(ctx context.Context, orderID string, amount dompay.Money, attempt int) (dompay.Result, error) {
	start := time.Now()
	res, err := uc.gateway.Charge(ctx, orderID, amount)

	outcome := "success"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		outcome = "canceled"
	case dompay.IsFatal(err):
		outcome = "fatal"
	case errors.Is(err, dompay.ErrPaymentUnavailable):
		outcome = "unavailable"
	default:
		outcome = "failed"
	}
	uc.obs.ObserveExternal(paymentPeer, "charge", outcome, start)
	uc.attempts.Add(1, observability.L("outcome", outcome))
	trace.SpanFromContext(ctx).AddEvent("payment.attempt", trace.WithAttributes(
		attribute.Int("payment.attempt", attempt),
		attribute.String("payment.outcome", outcome),
	))
	return res, err
}

// confirm reloads the order and stores CONFIRMED only if it is still PENDING at write time.
func (uc *ProcessPaymentUseCase) confirm(ctx context.Context, run *application.Run, orderID, txID string, attempts int) (*ProcessPaymentResult, error) {
	entity, err := uc.repo.Get(ctx, orderID)
	if err != nil {
		run.Fail("REPO_GET_FAILED")
		return nil, wrapRepositoryError(err)
	}
	if err := entity.Confirm(); err != nil {
		run.Fail("ORDER_NOT_PENDING")
		return nil, fmt.Errorf("order: confirm %s in status %s: %w", entity.ID, entity.Status, err)
	}
	if err := uc.repo.Update(ctx, entity); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// the charge went through but a cancel won the status race
			run.Fail("ORDER_NOT_PENDING")
			run.Logger().Error("payment_charged_order_not_pending",
				observability.F("order_id", entity.ID),
				observability.F("transaction_id", txID),
			)
			return nil, fmt.Errorf("order: confirm %s: %w", entity.ID, err)
		}
		run.Fail("REPO_UPDATE_FAILED")
		return nil, wrapRepositoryError(err)
	}

	if pubErr := uc.obs.Publish(ctx, uc.publisher, domain.NewConfirmedEvent(entity, txID, attempts)); pubErr != nil {
		run.SetStatus("EVENT_PUBLISH_FAILED")
		run.Add(observability.F("event_publish_error", pubErr.Error()))
	}
	run.Add(observability.F("transaction_id", txID))
	run.Span().SetAttributes(
		attribute.String("payment.transaction_id", txID),
		attribute.Int("payment.attempts", attempts),
	)

	return &ProcessPaymentResult{
		OrderID:       entity.ID,
		Status:        entity.Status,
		TransactionID: txID,
		Attempts:      attempts,
	}, nil
}
