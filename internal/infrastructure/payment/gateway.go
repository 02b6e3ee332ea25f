package payment

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	dompay "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"

	"github.com/google/uuid"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeUnavailable
	OutcomeFatal
)

// SimulatedGateway stands in for a card processor. Scripted outcomes are
// consumed first, one per call; after that each call fails with probability p.
type SimulatedGateway struct {
	mu          sync.Mutex
	random      *rand.Rand
	failureRate float64
	script      []Outcome
	latency     time.Duration
	calls       int
}

type Option func(*SimulatedGateway)

func WithFailureProbability(p float64) Option {
	return func(g *SimulatedGateway) {
		g.failureRate = min(max(p, 0), 1)
	}
}

func WithSeed(seed int64) Option {
	return func(g *SimulatedGateway) {
		g.random = rand.New(rand.NewSource(seed))
	}
}

func WithLatency(d time.Duration) Option {
	return func(g *SimulatedGateway) {
		if d >= 0 {
			g.latency = d
		}
	}
}

func WithScript(outcomes ...Outcome) Option {
	return func(g *SimulatedGateway) {
		g.script = append(g.script, outcomes...)
	}
}

func NewSimulatedGateway(opts ...Option) *SimulatedGateway {
	g := &SimulatedGateway{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		failureRate: 0.3,
		latency:     100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *SimulatedGateway) Charge(ctx context.Context, orderID string, amount dompay.Money) (dompay.Result, error) {
	if orderID == "" {
		return dompay.Result{}, dompay.Fatal(errors.New("payment: order id is required"))
	}
	if amount.Amount.IsNegative() {
		return dompay.Result{}, dompay.Fatal(errors.New("payment: amount must be zero or greater"))
	}

	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return dompay.Result{}, ctx.Err()
		case <-t.C:
		}
	}

	switch g.next() {
	case OutcomeFailed:
		return dompay.Result{}, dompay.ErrPaymentFailed
	case OutcomeUnavailable:
		return dompay.Result{}, dompay.ErrPaymentUnavailable
	case OutcomeFatal:
		return dompay.Result{}, dompay.Fatal(dompay.ErrPaymentFailed)
	default:
		return dompay.Result{TransactionID: uuid.NewString()}, nil
	}
}

// Calls reports how many charges reached the outcome stage.
func (g *SimulatedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *SimulatedGateway) next() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.script) > 0 {
		o := g.script[0]
		g.script = g.script[1:]
		return o
	}
	if g.random.Float64() < g.failureRate {
		return OutcomeFailed
	}
	return OutcomeSuccess
}
