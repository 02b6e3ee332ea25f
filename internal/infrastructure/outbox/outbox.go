package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"go.opentelemetry.io/otel/trace"
)

var ErrBusClosed = errors.New("outbox: bus closed")

const componentOutbox = "outbox"

type envelope struct {
	event domoutbox.Event
	span  trace.SpanContext
}

// Bus is an in-memory fanout bus. It is not durable: events still queued when
// the process dies are lost, which the relay and workers tolerate.
type Bus struct {
	mu             sync.RWMutex
	subs           map[string][]domoutbox.Handler
	queue          chan envelope
	closed         bool
	stopping       chan struct{}
	started        atomic.Bool
	done           chan struct{}
	sem            chan struct{}
	inflight       sync.WaitGroup
	startOnce      sync.Once
	stopOnce       sync.Once
	concurrency    int
	handlerTimeout time.Duration
	middleware     []domoutbox.Middleware
	log            observability.Logger
}

type Option func(*Bus)

func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan envelope, n)
		}
	}
}

func WithConcurrency(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.handlerTimeout = d
		}
	}
}

// WithMiddleware wraps every handler at Subscribe time. The first middleware is the outermost.
func WithMiddleware(mw ...domoutbox.Middleware) Option {
	return func(b *Bus) {
		b.middleware = append(b.middleware, mw...)
	}
}

func NewBus(logger observability.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = observability.NopLogger()
	}
	b := &Bus{
		subs:           make(map[string][]domoutbox.Handler),
		queue:          make(chan envelope, 1024),
		stopping:       make(chan struct{}),
		done:           make(chan struct{}),
		concurrency:    8,
		handlerTimeout: 30 * time.Second,
		log:            logger.With(observability.F("component", componentOutbox)),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.sem = make(chan struct{}, b.concurrency)
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	for i := len(b.middleware) - 1; i >= 0; i-- {
		h = b.middleware[i](eventName, h)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

// Start launches the dispatch loop. Handlers run on a context detached from ctx's cancellation.
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.started.Store(true)
		go b.dispatchLoop(context.WithoutCancel(ctx))
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop rejects new events, drains the queue and waits for in-flight handlers or ctx.
func (b *Bus) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		// wake publishers blocked on a full queue so they drop their read lock
		close(b.stopping)
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()

		if b.started.Load() {
			select {
			case <-b.done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
	return err
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	env := envelope{event: e, span: trace.SpanContextFromContext(ctx)}
	select {
	case b.queue <- env:
		logctx.FromOr(ctx, b.log).Debug("event_enqueued", observability.F("event", e.EventName()))
		return nil
	case <-b.stopping:
		return ErrBusClosed
	case <-ctx.Done():
		logctx.FromOr(ctx, b.log).Warn("event_enqueue_aborted",
			observability.F("event", e.EventName()),
			observability.F("error", ctx.Err()),
		)
		return ctx.Err()
	}
}

// dispatchLoop hands each event to its handlers without waiting for them, so a
// slow handler holds one concurrency slot instead of the whole queue.
func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for env := range b.queue {
		b.fanout(ctx, env)
	}
	b.inflight.Wait()
}

func (b *Bus) fanout(ctx context.Context, env envelope) {
	name := env.event.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	logger := b.log.With(observability.F("event", name))
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	if env.span.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, env.span)
	}
	ctx = logctx.With(ctx, logger)

	for _, h := range handlers {
		b.sem <- struct{}{}
		b.inflight.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-b.sem
				b.inflight.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
			defer cancel()
			if err := h(hctx, env.event); err != nil {
				logger.Warn("event_handler_error", observability.F("error", err))
			}
		}()
	}

	logger.Debug("event_dispatched", observability.F("handlers", len(handlers)))
}
