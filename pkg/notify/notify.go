// Package notify delivers fire-and-forget service events.
//
// The tracking loop announces lifecycle changes and per-frame failures as
// events. Delivery is best effort by contract: the Worker decouples emitters
// from sinks with a bounded queue and drops on overflow, so a slow or dead
// sink can never stall frame processing. Nothing here retries or
// acknowledges.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ServiceName tags every event this process emits.
const ServiceName = "vzen"

// Kind classifies an event.
type Kind string

// Event kinds emitted by the tracking loop.
const (
	KindLoopStarted    Kind = "loop-started"
	KindLoopStopped    Kind = "loop-stopped"
	KindDetectionError Kind = "detection-error"
	KindSourceLost     Kind = "source-lost"
)

// Event is one service notification.
type Event struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Service string    `json:"service"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(kind Kind, message string) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Service: ServiceName,
		Message: message,
		Time:    time.Now(),
	}
}

// Notifier accepts events. Implementations must return without blocking on
// delivery; the emitter is the hot loop.
type Notifier interface {
	Notify(Event)
}

// Sink is one delivery target behind a Worker.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
	Close() error
}
