package gateway

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestEventBusEmitOn(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var received Event

	eb.On(EventChannelUpdate, func(e Event) {
		received = e
	})

	eb.Emit(Event{Type: EventChannelUpdate, Data: "test"})

	if received.Type != EventChannelUpdate {
		t.Errorf("type = %q, want %q", received.Type, EventChannelUpdate)
	}
	if received.Data != "test" {
		t.Errorf("data = %v, want %q", received.Data, "test")
	}
}

func TestEventBusOnDoesNotReceiveOtherTypes(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	called := false

	eb.On(EventDeviceAdded, func(e Event) {
		called = true
	})

	eb.Emit(Event{Type: EventDeviceRemoved})

	if called {
		t.Error("handler called for a different event type")
	}
}

func TestEventBusOnAll(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var count int

	eb.OnAll(func(e Event) { count++ })

	eb.Emit(Event{Type: EventTelegramReceived})
	eb.Emit(Event{Type: EventUnknownProfile})

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var count int

	unsub := eb.On(EventChannelUpdate, func(e Event) { count++ })
	eb.Emit(Event{Type: EventChannelUpdate})
	unsub()
	unsub()
	eb.Emit(Event{Type: EventChannelUpdate})

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestEventBusPanicRecovery(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	called := false

	eb.On(EventChannelUpdate, func(e Event) { panic("boom") })
	eb.OnAll(func(e Event) { called = true })

	eb.Emit(Event{Type: EventChannelUpdate})

	if !called {
		t.Error("second handler not called after panic")
	}
}

func TestEventBusConcurrent(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var count atomic.Int64

	eb.OnAll(func(e Event) { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Emit(Event{Type: EventChannelUpdate})
		}()
	}
	wg.Wait()

	if count.Load() != 50 {
		t.Errorf("count = %d, want 50", count.Load())
	}
}
