package outbox_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/goleak"
)

type pinged struct{ n int }

func (pinged) EventName() string { return "test.pinged" }

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBusFansOutToEverySubscriber(t *testing.T) {
	bus := outbox.NewBus(nil)

	var mu sync.Mutex
	got := map[string][]int{}
	for _, name := range []string{"a", "b"} {
		bus.Subscribe("test.pinged", func(_ context.Context, e domoutbox.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], e.(pinged).n)
			return nil
		})
	}
	bus.Start(t.Context())

	for i := range 3 {
		require.NoError(t, bus.Publish(t.Context(), pinged{n: i}))
	}
	require.NoError(t, bus.Stop(t.Context()))

	assert.ElementsMatch(t, []int{0, 1, 2}, got["a"])
	assert.ElementsMatch(t, []int{0, 1, 2}, got["b"])
}

func TestBusStopDrainsQueuedEvents(t *testing.T) {
	bus := outbox.NewBus(nil, outbox.WithQueueSize(16))

	var handled atomic.Int64
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil
	})

	for range 10 {
		require.NoError(t, bus.Publish(t.Context(), pinged{}))
	}
	bus.Start(t.Context())
	require.NoError(t, bus.Stop(t.Context()))

	assert.Equal(t, int64(10), handled.Load())
}

func TestBusRejectsPublishAfterStop(t *testing.T) {
	bus := outbox.NewBus(nil)
	bus.Start(t.Context())
	require.NoError(t, bus.Stop(t.Context()))

	assert.ErrorIs(t, bus.Publish(t.Context(), pinged{}), outbox.ErrBusClosed)
	assert.NoError(t, bus.Stop(t.Context()), "second stop is a no-op")
}

func TestBusSurvivesFailingAndPanickingHandlers(t *testing.T) {
	bus := outbox.NewBus(nil)

	var ok atomic.Int64
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		return errors.New("boom")
	})
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		panic("handler bug")
	})
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		ok.Add(1)
		return nil
	})
	bus.Start(t.Context())

	require.NoError(t, bus.Publish(t.Context(), pinged{}))
	require.NoError(t, bus.Publish(t.Context(), pinged{}))
	require.NoError(t, bus.Stop(t.Context()))

	assert.Equal(t, int64(2), ok.Load())
}

func TestBusHandlersOutliveCallerCancellation(t *testing.T) {
	bus := outbox.NewBus(nil)

	var handlerErr error
	bus.Subscribe("test.pinged", func(ctx context.Context, _ domoutbox.Event) error {
		handlerErr = ctx.Err()
		return nil
	})

	startCtx, cancel := context.WithCancel(t.Context())
	bus.Start(startCtx)
	require.NoError(t, bus.Publish(t.Context(), pinged{}))
	cancel()
	require.NoError(t, bus.Stop(t.Context()))

	assert.NoError(t, handlerErr)
}

func TestBusCarriesSpanContextAndAppliesMiddleware(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var order []string
	mw := func(tag string) domoutbox.Middleware {
		return func(eventName string, next domoutbox.Handler) domoutbox.Handler {
			return func(ctx context.Context, e domoutbox.Event) error {
				order = append(order, tag+":"+eventName)
				return next(ctx, e)
			}
		}
	}
	bus := outbox.NewBus(nil, outbox.WithMiddleware(mw("outer"), mw("inner")))

	var seen trace.SpanContext
	bus.Subscribe("test.pinged", func(ctx context.Context, _ domoutbox.Event) error {
		order = append(order, "handler")
		seen = trace.SpanContextFromContext(ctx)
		return nil
	})
	bus.Start(t.Context())

	ctx, span := tp.Tracer("test").Start(t.Context(), "publish")
	require.NoError(t, bus.Publish(ctx, pinged{}))
	span.End()
	require.NoError(t, bus.Stop(t.Context()))

	assert.Equal(t, []string{"outer:test.pinged", "inner:test.pinged", "handler"}, order)
	assert.Equal(t, span.SpanContext().TraceID(), seen.TraceID())
	assert.True(t, seen.IsRemote())
}

type shipped struct{}

func (shipped) EventName() string { return "test.shipped" }

func TestBusSlowHandlerDoesNotHoldBackLaterEvents(t *testing.T) {
	bus := outbox.NewBus(nil, outbox.WithConcurrency(2))

	release := make(chan struct{})
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		<-release
		return nil
	})
	shippedSeen := make(chan struct{})
	bus.Subscribe("test.shipped", func(context.Context, domoutbox.Event) error {
		close(shippedSeen)
		return nil
	})
	bus.Start(t.Context())

	require.NoError(t, bus.Publish(t.Context(), pinged{}))
	require.NoError(t, bus.Publish(t.Context(), shipped{}))

	select {
	case <-shippedSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("test.shipped waited behind the blocked test.pinged handler")
	}

	close(release)
	require.NoError(t, bus.Stop(t.Context()))
}

func TestBusStopWakesPublisherBlockedOnFullQueue(t *testing.T) {
	bus := outbox.NewBus(nil, outbox.WithQueueSize(1))
	require.NoError(t, bus.Publish(t.Context(), pinged{}))

	published := make(chan error, 1)
	go func() { published <- bus.Publish(t.Context(), pinged{}) }()

	require.NoError(t, bus.Stop(t.Context()))
	select {
	case err := <-published:
		assert.ErrorIs(t, err, outbox.ErrBusClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("publisher stayed blocked after Stop")
	}
}
