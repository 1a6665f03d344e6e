// Package outbox turns calendar domain events into records that the storage
// layer keeps until they reach the broker.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ownercal/internal/domain/shared/events"
)

const (
	HeaderEventName  = "event_name"
	HeaderPropertyID = "property_id"
)

var ErrMissingProperty = errors.New("outbox: event has no property id")

// EventRecord is one calendar change waiting to be published. PropertyID is
// the broker key, so changes to one property stay ordered.
type EventRecord struct {
	ID         string
	Name       string
	PropertyID string
	Payload    []byte
	OccurredAt time.Time
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// JSONEventEncoder marshals the event as the payload and stamps the name and
// property id as headers.
type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	property := ev.AggregateID()
	if property == "" {
		return EventRecord{}, fmt.Errorf("%w: %s", ErrMissingProperty, ev.EventName())
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		PropertyID: property,
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Headers: map[string]string{
			HeaderEventName:  ev.EventName(),
			HeaderPropertyID: property,
		},
	}, nil
}

// RecordCalendarEvents encodes every event before adding any, so an event
// that fails to encode leaves box untouched. A nil box drops them.
func RecordCalendarEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	records := make([]EventRecord, 0, len(evs))
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		if err := box.Add(ctx, rec); err != nil {
			return fmt.Errorf("outbox add %s: %w", rec.ID, err)
		}
	}
	return nil
}
