package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	dompay "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/sony/gobreaker"
)

// BreakerGateway stops calling next after repeated failures. While open it
// answers with ErrPaymentUnavailable, which the caller may retry.
type BreakerGateway struct {
	next dompay.Gateway
	cb   *gobreaker.CircuitBreaker
}

type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "payment-gateway",
		MaxRequests:  3,
		Interval:     5 * time.Second,
		Timeout:      10 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

func NewBreakerGateway(next dompay.Gateway, cfg BreakerConfig, logger observability.Logger) *BreakerGateway {
	if logger == nil {
		logger = observability.NopLogger()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		// A declined card says nothing about gateway health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, dompay.ErrPaymentFailed) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_changed",
				observability.F("name", name),
				observability.F("from", from.String()),
				observability.F("to", to.String()),
			)
		},
	}
	return &BreakerGateway{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (g *BreakerGateway) Charge(ctx context.Context, orderID string, amount dompay.Money) (dompay.Result, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Charge(ctx, orderID, amount)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return dompay.Result{}, fmt.Errorf("%w: %w", dompay.ErrPaymentUnavailable, err)
		}
		return dompay.Result{}, err
	}
	return res.(dompay.Result), nil
}

func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}
