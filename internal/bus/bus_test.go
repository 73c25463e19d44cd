package bus

import (
	"context"
	"testing"
	"time"
)

func TestDispatchRoutesByTask(t *testing.T) {
	b := NewEventBus()

	taskEvents := make(chan *Event, 10)
	allEvents := make(chan *Event, 10)
	b.Subscribe("task-1", func(ev *Event) { taskEvents <- ev })
	b.Subscribe("", func(ev *Event) { allEvents <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Dispatch(ctx)

	b.Publish(&Event{Kind: EventAppended, TaskID: "task-1", Index: 0})
	b.Publish(&Event{Kind: EventAppended, TaskID: "task-2", Index: 0})

	select {
	case ev := <-taskEvents:
		if ev.TaskID != "task-1" {
			t.Fatalf("task subscriber got wrong task: %s", ev.TaskID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task event")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-allEvents:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for wildcard events")
		}
	}

	select {
	case ev := <-taskEvents:
		t.Fatalf("task subscriber received foreign event: %+v", ev)
	default:
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	b := NewEventBus()
	ev := &Event{Kind: EventTaskEnded, TaskID: "task-1"}
	b.Publish(ev)
	if ev.Timestamp.IsZero() {
		t.Fatal("expected timestamp stamped on publish")
	}
	if b.Pending() != 1 {
		t.Fatalf("expected 1 pending event, got %d", b.Pending())
	}
}
