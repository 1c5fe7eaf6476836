// Package realtime fans events out to connected clients. Delivery is best
// effort: nothing is acknowledged, queued for offline users or replayed.
package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/metrics"
)

// Event is the frame clients receive.
type Event struct {
	Name       string        `json:"event"`
	Args       []interface{} `json:"args"`
	Recipients []string      `json:"recipients,omitempty"`
}

// Broadcaster is what the services depend on. Send never blocks on
// delivery and never reports failure.
type Broadcaster interface {
	Send(event string, recipients []string, args ...interface{})
}

// Sink delivers an event to one transport.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

type Dispatcher struct {
	ctx    context.Context
	cancel context.CancelFunc
	sinks  []Sink
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		ctx:    ctx,
		cancel: cancel,
		sinks:  sinks,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Send hands the event to every sink on its own goroutine. An empty
// recipient list addresses every connected client.
func (d *Dispatcher) Send(event string, recipients []string, args ...interface{}) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	if args == nil {
		args = []interface{}{}
	}
	ev := Event{Name: event, Args: args, Recipients: recipients}
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink Sink) {
			defer d.wg.Done()
			if err := sink.Deliver(d.ctx, ev); err != nil {
				metrics.BroadcastsTotal.WithLabelValues(event, sink.Name(), "error").Inc()
				d.logger.Warn().Err(err).
					Str("event", event).
					Str("sink", sink.Name()).
					Int("recipients", len(recipients)).
					Msg("broadcast failed")
				return
			}
			metrics.BroadcastsTotal.WithLabelValues(event, sink.Name(), "ok").Inc()
		}(sink)
	}
}

// Shutdown cancels in-flight deliveries and waits for them to return or
// for ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
