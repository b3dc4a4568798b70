// Package dispatcher delivers domain events to notification handlers.
//
// Delivery is fire-and-forget from the caller's point of view: a handler
// error is logged and never reaches the operation that raised the event.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/timesheet-approval/internal/domain/event"
)

// ErrClosed is returned when dispatching on a closed dispatcher
var ErrClosed = errors.New("dispatcher is closed")

// Handler processes one domain event
type Handler func(ctx context.Context, evt *event.Event) error

// Dispatcher routes events to subscribed handlers
type Dispatcher interface {
	// Subscribe registers a named handler for an event type
	Subscribe(eventType event.Type, name string, handler Handler)

	// Dispatch runs every handler for the event in order and joins their errors
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs the handlers in the background and returns immediately
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Subscriptions returns the handler names registered for an event type
	Subscriptions(eventType event.Type) []string

	// Close stops accepting events and waits for in-flight handlers or ctx
	Close(ctx context.Context) error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	name    string
	handler Handler
}

type eventDispatcher struct {
	// mu guards subs and closed. acquire adds to wg while holding it,
	// so no Add can follow Close's Wait.
	mu     sync.RWMutex
	subs   map[event.Type][]subscription
	closed bool
	logger Logger

	handlerTimeout time.Duration
	slots          chan struct{}

	wg sync.WaitGroup
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithHandlerTimeout bounds each handler invocation. Zero means no bound.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *eventDispatcher) {
		d.handlerTimeout = timeout
	}
}

// WithMaxInFlight caps the number of concurrently running async handlers
func WithMaxInFlight(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.slots = make(chan struct{}, n)
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subs: make(map[event.Type][]subscription),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Subscribe registers a named handler for an event type
func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.subs[eventType] = append(d.subs[eventType], subscription{name: name, handler: handler})

	d.info("Handler subscribed", "event_type", eventType, "handler_name", name)
}

// Subscriptions returns the handler names registered for an event type
func (d *eventDispatcher) Subscriptions(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.subs[eventType]))
	for _, s := range d.subs[eventType] {
		names = append(names, s.name)
	}
	return names
}

// Dispatch runs the handlers synchronously
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	subs, ok := d.acquire(evt.Type)
	if !ok {
		return ErrClosed
	}
	defer d.wg.Add(-len(subs))

	var errs []error
	for _, s := range subs {
		if err := d.run(ctx, evt, s); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", s.name, err))
		}
	}

	return errors.Join(errs...)
}

// DispatchAsync runs the handlers in background goroutines
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	subs, ok := d.acquire(evt.Type)
	if !ok {
		d.error("Event dropped, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}
	if len(subs) == 0 {
		return
	}

	d.info("Dispatching event", "event_type", evt.Type, "event_id", evt.ID, "handler_count", len(subs))

	for _, s := range subs {
		go func(s subscription) {
			defer d.wg.Done()

			if d.slots != nil {
				d.slots <- struct{}{}
				defer func() { <-d.slots }()
			}

			if err := d.run(ctx, evt, s); err != nil {
				d.error("Event handler failed",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", s.name,
					"error", err,
				)
			}
		}(s)
	}
}

// Close waits for in-flight handlers until ctx is done
func (d *eventDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.info("Dispatcher closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for event handlers: %w", ctx.Err())
	}
}

// acquire copies the handlers for eventType and counts them as in flight.
// It reports false once the dispatcher is closed. The caller marks each
// handler done on wg.
func (d *eventDispatcher) acquire(eventType event.Type) ([]subscription, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, false
	}

	subs := make([]subscription, len(d.subs[eventType]))
	copy(subs, d.subs[eventType])
	d.wg.Add(len(subs))
	return subs, true
}

// run executes one handler with the timeout and panic recovery
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, s subscription) (err error) {
	if d.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.handlerTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return s.handler(ctx, evt)
}

func (d *eventDispatcher) info(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) error(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
