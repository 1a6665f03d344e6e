package events

import "time"

// DomainEvent is a fact recorded by an aggregate and shipped through the outbox.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded by aggregates that emit events.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

// Drain returns the pending events and clears them.
func (r *EventRecorder) Drain() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
