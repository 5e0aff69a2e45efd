package notify

import (
	"context"
	"sync"
	"time"

	"github.com/vzenlabs/vzen/internal/log"
	"github.com/vzenlabs/vzen/pkg/telemetry"
)

const (
	// queueSize bounds the pending event buffer.
	queueSize = 64

	// deliverTimeout caps how long one event may hold a sink.
	deliverTimeout = 5 * time.Second
)

// Worker fans events out to sinks on its own goroutine. Notify never
// blocks: when the queue is full the event is dropped and counted.
type Worker struct {
	sinks   []Sink
	metrics *telemetry.Metrics

	ch   chan Event
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewWorker starts a worker delivering to the given sinks. metrics may be
// nil when the process does not export counters.
func NewWorker(metrics *telemetry.Metrics, sinks ...Sink) *Worker {
	w := &Worker{
		sinks:   sinks,
		metrics: metrics,
		ch:      make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Notify queues the event for delivery, dropping it if the queue is full
// or the worker is closed.
func (w *Worker) Notify(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.drop(ev)
		return
	}

	select {
	case w.ch <- ev:
	default:
		w.drop(ev)
	}
}

func (w *Worker) drop(ev Event) {
	w.dropped++
	if w.metrics != nil {
		w.metrics.EventsDropped.Add(1)
	}
	log.Warn("notification dropped", "kind", ev.Kind, "message", ev.Message)
}

// Dropped returns how many events were discarded.
func (w *Worker) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Worker) run() {
	defer close(w.done)

	for ev := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		for _, s := range w.sinks {
			if err := s.Deliver(ctx, ev); err != nil {
				log.Warn("notification delivery failed",
					"kind", ev.Kind, "error", err)
			}
		}
		cancel()

		if w.metrics != nil {
			w.metrics.EventsSent.Add(1)
		}
	}
}

// Close drains queued events, then closes every sink.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	<-w.done
	for _, s := range w.sinks {
		if err := s.Close(); err != nil {
			log.Warn("notification sink close failed", "error", err)
		}
	}
}

// Verify Worker implements Notifier at compile time.
var _ Notifier = (*Worker)(nil)
