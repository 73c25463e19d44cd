// Package bus provides the async event bus between recorders and live
// timeline consumers.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
)

// Event kinds published on the bus.
const (
	EventAppended  = "appended"
	EventUpdated   = "updated"
	EventTaskEnded = "task_ended"
)

// Event is one recorder notification: a message was appended or
// reconciled in place, or a task finished.
type Event struct {
	Kind      string              `json:"kind"`
	TaskID    string              `json:"task_id"`
	Index     int                 `json:"index"`
	Message   *normalized.Message `json:"message,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// EventBus decouples recorders from live consumers. Subscribers register a
// callback per task id; the empty task id receives everything.
type EventBus struct {
	events chan *Event
	subs   map[string][]func(*Event)
	mu     sync.RWMutex
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		events: make(chan *Event, 100),
		subs:   make(map[string][]func(*Event)),
	}
}

// Publish queues an event for dispatch.
func (b *EventBus) Publish(ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.events <- ev
}

// Subscribe registers a callback for a task's events. Pass an empty taskID
// to receive events for every task.
func (b *EventBus) Subscribe(taskID string, callback func(*Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[taskID] = append(b.subs[taskID], callback)
}

// Dispatch runs the event dispatcher until the context is cancelled.
// This should be run as a goroutine.
func (b *EventBus) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.events:
			b.mu.RLock()
			callbacks := append([]func(*Event){}, b.subs[ev.TaskID]...)
			callbacks = append(callbacks, b.subs[""]...)
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(ev)
			}
		}
	}
}

// Pending returns the number of queued events.
func (b *EventBus) Pending() int {
	return len(b.events)
}
