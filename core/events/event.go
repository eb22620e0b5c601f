package events

// Event represents a structured state change emitted by the swap engine.
type Event struct {
	Type       string
	Attributes map[string]string
}

// EventType returns the canonical type string of the event.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}
