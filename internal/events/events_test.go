package events

import (
	"errors"
	"testing"

	"github.com/nvandessel/gasprops/internal/constants"
)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(e Event) { got = append(got, "a:"+string(e.Kind)) })
	bus.Subscribe(func(e Event) { got = append(got, "b:"+string(e.Kind)) })

	bus.Publish(Event{Kind: Reset})
	bus.Publish(Event{Kind: DividerToggled})

	want := []string{"a:reset", "b:reset", "a:divider_toggled", "b:divider_toggled"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsub := bus.Subscribe(func(Event) { calls++ })
	other := 0
	bus.Subscribe(func(Event) { other++ })

	bus.Publish(Event{Kind: Reset})
	unsub()
	unsub() // second call is a no-op
	bus.Publish(Event{Kind: Reset})

	if calls != 1 {
		t.Errorf("unsubscribed handler called %d times, want 1", calls)
	}
	if other != 2 {
		t.Errorf("remaining handler called %d times, want 2", other)
	}
	if bus.Len() != 1 {
		t.Errorf("Len() = %d, want 1", bus.Len())
	}
}

func TestBus_NilIsSafe(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Kind: Reset})
}

func TestEvent_Fields(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		key   string
		want  any
	}{
		{"population", Event{Kind: PopulationChanged, Species: constants.Species1, Count: 12}, "count", 12},
		{"parameter", Event{Kind: ParameterChanged, Species: constants.Species2, Parameter: "mass", Value: 4}, "parameter", "mass"},
		{"divider", Event{Kind: DividerToggled, Divider: true}, "divider", true},
		{"failure", Event{Kind: StepFailed, Err: errors.New("boom")}, "error", "boom"},
		{"species", Event{Kind: PopulationChanged, Species: constants.Species2}, "species", "species2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.event.Fields()
			if f["event"] != string(tt.event.Kind) {
				t.Errorf("event = %v, want %v", f["event"], tt.event.Kind)
			}
			if f[tt.key] != tt.want {
				t.Errorf("%s = %v, want %v", tt.key, f[tt.key], tt.want)
			}
		})
	}
}
