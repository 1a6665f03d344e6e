package memory

import (
	"context"
	"log/slog"
	"sync"

	appoutbox "ownercal/internal/app/outbox"
)

// Publisher ships one outbox record, typically to a broker.
type Publisher interface {
	PublishRecord(ctx context.Context, record appoutbox.EventRecord) error
}

// Outbox buffers records in memory. Flush hands them to Publisher when one is
// set and keeps the ones that failed for the next flush; without a publisher
// flushed records are dropped.
type Outbox struct {
	Publisher Publisher
	Logger    *slog.Logger

	mu      sync.Mutex
	records []appoutbox.EventRecord
	sent    int
}

func NewOutbox(pub Publisher, logger *slog.Logger) *Outbox {
	return &Outbox{Publisher: pub, Logger: logger}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Publisher == nil {
		o.sent += len(o.records)
		o.records = nil
		return nil
	}
	var remaining []appoutbox.EventRecord
	for _, rec := range o.records {
		if err := o.Publisher.PublishRecord(ctx, rec); err != nil {
			remaining = append(remaining, rec)
			if o.Logger != nil {
				o.Logger.Warn("outbox publish failed", "event", rec.Name, "event_id", rec.ID, "error", err)
			}
			continue
		}
		o.sent++
	}
	o.records = remaining
	return nil
}

// Pending returns a copy of the records not yet flushed.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

func (o *Outbox) Sent() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}

var _ appoutbox.Outbox = (*Outbox)(nil)
