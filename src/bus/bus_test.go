package bus

import (
	"testing"

	"snipclip/src/events"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()
	a, err := b.Subscribe("a", 4)
	if err != nil {
		t.Fatalf("Subscribe error = %v", err)
	}
	c, err := b.Subscribe("b", 4)
	if err != nil {
		t.Fatalf("Subscribe error = %v", err)
	}

	b.Publish(events.BindingsReloaded{})

	for _, ch := range []<-chan events.Event{a, c} {
		select {
		case ev := <-ch:
			if ev.Type() != events.TypeBindingsReloaded {
				t.Errorf("event type = %s", ev.Type())
			}
		default:
			t.Errorf("subscriber missed event")
		}
	}
}

func TestDuplicateSubscriberRejected(t *testing.T) {
	b := New()
	if _, err := b.Subscribe("a", 1); err != nil {
		t.Fatalf("Subscribe error = %v", err)
	}
	if _, err := b.Subscribe("a", 1); err == nil {
		t.Fatalf("duplicate Subscribe succeeded")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := New()
	ch, err := b.Subscribe("slow", 1)
	if err != nil {
		t.Fatalf("Subscribe error = %v", err)
	}
	b.Publish(events.BindingsReloaded{})
	b.Publish(events.BindingsReloaded{}) // dropped, must not block

	if len(ch) != 1 {
		t.Errorf("buffered events = %d, want 1", len(ch))
	}
}

func TestShutdownClosesChannels(t *testing.T) {
	b := New()
	ch, err := b.Subscribe("a", 1)
	if err != nil {
		t.Fatalf("Subscribe error = %v", err)
	}
	b.Shutdown()
	b.Shutdown() // idempotent

	if _, open := <-ch; open {
		t.Errorf("channel still open after Shutdown")
	}
	b.Publish(events.BindingsReloaded{}) // must not panic
	if _, err := b.Subscribe("late", 1); err == nil {
		t.Errorf("Subscribe succeeded after Shutdown")
	}
}
