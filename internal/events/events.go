// Package events is the notification interface between the diffusion model
// and anything that reacts to its changes (loggers, renderers, servers).
package events

import "github.com/nvandessel/gasprops/internal/constants"

// Kind identifies what changed.
type Kind string

const (
	PopulationChanged Kind = "population_changed"
	DividerToggled    Kind = "divider_toggled"
	ParameterChanged  Kind = "parameter_changed"
	Reset             Kind = "reset"
	StepFailed        Kind = "step_failed"
)

// Event describes one change. Fields that do not apply to a Kind are zero.
type Event struct {
	Kind Kind

	// Species is set for population and parameter changes.
	Species constants.Species

	// Parameter names the experiment parameter for ParameterChanged,
	// e.g. "mass".
	Parameter string
	Value     float64

	// Count is the new population size for PopulationChanged.
	Count int

	// Divider is the new divider state for DividerToggled.
	Divider bool

	// Time is the model time in ps when the event was published.
	Time float64

	Err error
}

// Fields flattens e into a map suitable for structured logging.
func (e Event) Fields() map[string]any {
	f := map[string]any{
		"event":    string(e.Kind),
		"sim_time": e.Time,
	}
	if e.Species.Valid() {
		f["species"] = e.Species.String()
	}
	switch e.Kind {
	case PopulationChanged:
		f["count"] = e.Count
	case ParameterChanged:
		f["parameter"] = e.Parameter
		f["value"] = e.Value
	case DividerToggled:
		f["divider"] = e.Divider
	}
	if e.Err != nil {
		f["error"] = e.Err.Error()
	}
	return f
}

// Handler receives published events.
type Handler func(Event)

// Bus delivers events synchronously, in publish order, to every handler in
// subscription order. It is not safe for concurrent use; callers that share
// a model across goroutines serialise access to it.
type Bus struct {
	next     int
	handlers []subscription
}

type subscription struct {
	id int
	fn Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	id := b.next
	b.next++
	b.handlers = append(b.handlers, subscription{id: id, fn: fn})
	return func() {
		for i, s := range b.handlers {
			if s.id == id {
				b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every current handler. A nil bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	for _, s := range b.handlers {
		s.fn(e)
	}
}

// Len returns the number of subscribed handlers.
func (b *Bus) Len() int { return len(b.handlers) }
