package status

import (
	"testing"
	"time"

	"github.com/messenjrali/msgr/internal/bus"
)

func TestValidTransitionChain(t *testing.T) {
	m := NewMachine(nil)

	chain := []State{Connecting, Connected, Reconnecting, Connecting, Connected}
	for _, s := range chain {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition(%s) error = %v", s, err)
		}
	}
	if !m.IsConnected() {
		t.Error("IsConnected() = false after reaching Connected")
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)

	if err := m.Transition(Reconnecting); err == nil {
		t.Error("Booting -> Reconnecting should be rejected")
	}
	if m.Current() != Booting {
		t.Errorf("state mutated on rejected transition: %s", m.Current())
	}
}

func TestSelfTransitionIsNoop(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}
	// Draining the first event.
	<-ch

	if err := m.Transition(Connecting); err != nil {
		t.Fatalf("self transition error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("self transition published event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransitionPublishesStatusChange(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	ch, unsub := b.Subscribe("session.status_changed", 10)
	defer unsub()

	if err := m.Transition(AuthRequired); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type %T", evt.Payload)
		}
		if change.From != Booting || change.To != AuthRequired {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status change event")
	}
}
