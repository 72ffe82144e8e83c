package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/outbox"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability/logctx"
)

// ErrClosed is returned by Publish once the bus has been stopped.
var ErrClosed = errors.New("outbox: bus stopped")

const (
	componentOutbox = "outbox"

	defaultQueueSize      = 1024
	defaultConcurrency    = 8
	defaultHandlerTimeout = 30 * time.Second
)

// Bus is an in-memory event bus fanning settlement events out to subscribers.
// It is not durable: events still queued at shutdown are lost.
type Bus struct {
	mu             sync.RWMutex
	subs           map[string][]domoutbox.Handler
	qmu            sync.RWMutex // guards closed against sends on a closed queue
	queue          chan domoutbox.Event
	closed         bool
	startOnce      sync.Once
	stopOnce       sync.Once
	done           chan struct{}
	concurrency    int
	handlerTimeout time.Duration
	log            observability.Logger
}

type Option func(*Bus)

// WithQueueSize sets the buffer between Publish and dispatch.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan domoutbox.Event, n)
		}
	}
}

// WithConcurrency caps the handlers run in parallel for one event.
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

var _ domoutbox.Bus = (*Bus)(nil)

func NewBus(tel observability.Observability, opts ...Option) *Bus {
	_, logger, _ := observability.Components(tel, "")
	b := &Bus{
		subs:           make(map[string][]domoutbox.Handler),
		queue:          make(chan domoutbox.Event, defaultQueueSize),
		done:           make(chan struct{}),
		concurrency:    defaultConcurrency,
		handlerTimeout: defaultHandlerTimeout,
		log:            logger.With(observability.F("component", componentOutbox)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.dispatchLoop(context.WithoutCancel(ctx))
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop closes the queue and waits until queued events are dispatched or ctx ends.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.qmu.Lock()
		b.closed = true
		close(b.queue)
		b.qmu.Unlock()

		logger := logctx.FromOr(ctx, b.log)
		b.startOnce.Do(func() { close(b.done) })
		select {
		case <-b.done:
			logger.Info("event_bus_stopped")
		case <-ctx.Done():
			logger.Warn("event_bus_stop_timeout", observability.F("error", ctx.Err()))
		}
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	logger := logctx.FromOr(ctx, b.log).With(
		observability.F("event", e.EventName()),
		observability.F("aggregate_id", e.AggregateID()),
	)

	b.qmu.RLock()
	defer b.qmu.RUnlock()
	if b.closed {
		logger.Warn("event_enqueue_rejected", observability.F("error", ErrClosed))
		return ErrClosed
	}
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.F("error", ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for e := range b.queue {
		b.fanout(ctx, e)
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()
	logger := b.log.With(
		observability.F("event", name),
		observability.F("aggregate_id", e.AggregateID()),
	)

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	ctx = logctx.With(ctx, logger)
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
			defer cancel()
			if err := h(hctx, e); err != nil {
				logger.Warn("event_handler_error", observability.F("error", err))
			}
		}()
	}

	wg.Wait()
	logger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}
