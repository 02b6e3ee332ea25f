package order

import (
	"context"
	"errors"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"
)

type paymentExecutor interface {
	Execute(ctx context.Context, in ProcessPaymentInput) (*ProcessPaymentResult, error)
}

// PaymentWorker charges orders as soon as they are created.
type PaymentWorker struct {
	subscriber domoutbox.Subscriber
	pay        paymentExecutor
	log        observability.Logger
}

func NewPaymentWorker(subscriber domoutbox.Subscriber, pay paymentExecutor, tel observability.Observability) *PaymentWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &PaymentWorker{
		subscriber: subscriber,
		pay:        pay,
		log:        tel.Logger().With(observability.F("service", "order-payment-worker")),
	}
}

func (w *PaymentWorker) Start() {
	if w.subscriber == nil || w.pay == nil {
		return
	}
	w.subscriber.Subscribe(domain.CreatedEvent{}.EventName(), w.handleOrderCreated)
}

func (w *PaymentWorker) handleOrderCreated(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domain.CreatedEvent)
	if !ok {
		return nil
	}
	_, err := w.pay.Execute(ctx, ProcessPaymentInput{OrderID: evt.OrderID})
	if errors.Is(err, ErrInvalidTransition) {
		// Paid or cancelled through the API first.
		logctx.FromOr(ctx, w.log).Info("auto_payment_skipped", observability.F("order_id", evt.OrderID))
		return nil
	}
	return err
}
