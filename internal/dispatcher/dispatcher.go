// Package dispatcher routes decoded simulation events to their handlers.
// The event processor feeds it one event at a time; each event kind has at
// most one handler, and kinds without a handler are counted and ignored.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ctrue/dcs-connect/pkg/dcs"
)

// HandlerFunc processes one simulation event.
type HandlerFunc func(dcs.Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[dcs.EventKind]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueDepth metric.Int64ObservableGauge
	processed  metric.Int64Counter
	unhandled  metric.Int64Counter
	failed     metric.Int64Counter

	// Observed pipeline queues for the gauge callback
	mu     sync.RWMutex
	queues map[string]func() int
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[dcs.EventKind]HandlerFunc),
		queues:   make(map[string]func() int),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueDepth, err = m.Int64ObservableGauge(
		"dispatcher.queue.depth",
		metric.WithDescription("Current number of messages waiting in a pipeline queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue depth gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, depth := range d.queues {
				o.ObserveInt64(d.queueDepth, int64(depth()),
					metric.WithAttributes(attribute.String("queue", name)))
			}
			return nil
		},
		d.queueDepth,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events routed to a handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.unhandled, err = m.Int64Counter(
		"dispatcher.events.unhandled",
		metric.WithDescription("Total events with no registered handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unhandled counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total handler invocations that returned an error or panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given event kind with optional
// configuration. Registering twice for the same kind replaces the
// previous handler.
func (d *Dispatcher) Register(kind dcs.EventKind, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.logged {
		handler = d.withLogging(kind, handler)
	}

	d.handlers[kind] = handler
}

// ObserveQueue registers a pipeline queue depth callback under the given
// name so it shows up on the queue depth gauge.
func (d *Dispatcher) ObserveQueue(name string, depth func() int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues[name] = depth
}

// Dispatch routes an event to its registered handler. Events without a
// handler are observed and dropped silently; a stream of event kinds the
// client does not react to is normal. A panicking handler is contained
// here so one bad callback cannot take down the processor goroutine.
func (d *Dispatcher) Dispatch(e dcs.Event) (err error) {
	h, ok := d.handlers[e.Kind]
	if !ok {
		d.unhandled.Add(context.Background(), 1, metric.WithAttributes(kindAttr(e.Kind)))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", e.Kind, r)
			d.failed.Add(context.Background(), 1, metric.WithAttributes(kindAttr(e.Kind)))
			d.logger.Error("event handler panicked", "kind", e.Kind.String(), "panic", r)
		}
	}()

	err = h(e)
	if err != nil {
		d.failed.Add(context.Background(), 1, metric.WithAttributes(kindAttr(e.Kind)))
		return err
	}
	d.processed.Add(context.Background(), 1, metric.WithAttributes(kindAttr(e.Kind)))
	return nil
}

// HasHandler returns true if a handler is registered for the kind.
func (d *Dispatcher) HasHandler(kind dcs.EventKind) bool {
	_, ok := d.handlers[kind]
	return ok
}

func (d *Dispatcher) withLogging(kind dcs.EventKind, h HandlerFunc) HandlerFunc {
	return func(e dcs.Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "kind", kind.String())

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "kind", kind.String(), "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "kind", kind.String(), "duration", time.Since(start))
		}

		return err
	}
}

func kindAttr(kind dcs.EventKind) attribute.KeyValue {
	return attribute.String("kind", kind.String())
}
