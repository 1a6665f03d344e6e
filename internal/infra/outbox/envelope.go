package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "ownercal/internal/app/outbox"
)

const (
	DefaultSource = "app://ownercal"
	ContentType   = "application/cloudevents+json"
)

var ErrPublisherNotConfigured = errors.New("outbox: publisher missing producer")

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Envelope is the CloudEvents 1.0 structured form of a calendar event.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            string          `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
	TraceParent     string          `json:"traceparent,omitempty"`
}

// Encode wraps record into a CloudEvents envelope and returns the Kafka headers
// to send with it.
func Encode(record appoutbox.EventRecord, source string) ([]byte, map[string]string, error) {
	if !json.Valid(record.Payload) {
		return nil, nil, errors.New("outbox: event payload is not valid json")
	}
	if source == "" {
		source = DefaultSource
	}
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}
	evt := Envelope{
		SpecVersion:     "1.0",
		ID:              id,
		Type:            record.Name + ".v1",
		Source:          source,
		Subject:         record.PropertyID,
		Time:            record.OccurredAt.UTC().Format(time.RFC3339Nano),
		DataContentType: "application/json",
		Data:            json.RawMessage(record.Payload),
		TraceParent:     record.Headers["traceparent"],
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{"content-type": ContentType}
	for k, v := range record.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// Decode parses a CloudEvents envelope produced by Encode.
func Decode(payload []byte) (Envelope, error) {
	var evt Envelope
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Envelope{}, err
	}
	if evt.SpecVersion == "" || evt.Type == "" {
		return Envelope{}, errors.New("outbox: not a cloudevents envelope")
	}
	return evt, nil
}

// TopicFor maps "calendar.days_blocked" to "<prefix>calendar.events.v1".
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}

// BrokerPublisher sends records straight to the broker. It backs the
// in-memory outbox when there is no Mongo store for the worker to poll.
type BrokerPublisher struct {
	Producer    Producer
	TopicPrefix string
	Source      string
}

func (p BrokerPublisher) PublishRecord(ctx context.Context, record appoutbox.EventRecord) error {
	if p.Producer == nil {
		return ErrPublisherNotConfigured
	}
	payload, headers, err := Encode(record, p.Source)
	if err != nil {
		return err
	}
	return p.Producer.Publish(ctx, TopicFor(p.TopicPrefix, record.Name), record.PropertyID, payload, headers)
}
