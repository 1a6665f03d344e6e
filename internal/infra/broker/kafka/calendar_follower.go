package kafka

import (
	"context"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"ownercal/internal/infra/outbox"
)

// CalendarFollower turns calendar change events for one property into
// resync requests. Events for other properties and malformed messages are
// acknowledged and ignored.
type CalendarFollower struct {
	PropertyID string
	Resync     func(ctx context.Context) error
	Logger     *slog.Logger
}

func (f CalendarFollower) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	evt, err := outbox.Decode(msg.Value)
	if err != nil {
		f.log("skipping malformed calendar event", "offset", msg.Offset, "error", err)
		return nil
	}
	if !strings.HasPrefix(evt.Type, "calendar.") {
		return nil
	}
	if subject := eventProperty(evt, msg); subject != f.PropertyID {
		return nil
	}
	if f.Resync == nil {
		return nil
	}
	f.log("calendar changed remotely, resyncing", "property_id", f.PropertyID, "event", evt.Type)
	return f.Resync(ctx)
}

// eventProperty prefers the envelope subject and falls back to the message key.
func eventProperty(evt outbox.Envelope, msg *sarama.ConsumerMessage) string {
	if evt.Subject != "" {
		return evt.Subject
	}
	return string(msg.Key)
}

func (f CalendarFollower) log(msg string, args ...any) {
	if f.Logger != nil {
		f.Logger.Info(msg, args...)
	}
}

var _ MessageHandler = CalendarFollower{}
