package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "ownercal/internal/app/outbox"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Queue is the part of Store the worker needs.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Worker struct {
	Store       Queue
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
}

// Run polls the store until ctx is done, draining every due record per tick.
func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logError("outbox poll failed", "", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	for {
		processed, err := w.processOnce(ctx)
		if err != nil || !processed {
			return err
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	doc, err := w.Store.Claim(ctx, w.ID)
	if err != nil || doc == nil {
		return false, err
	}
	if err := w.publish(ctx, doc.Record()); err != nil {
		w.logError("outbox publish failed", doc.ID, err)
		return true, w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
	}
	return true, w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) publish(ctx context.Context, record appoutbox.EventRecord) error {
	payload, headers, err := Encode(record, w.Source)
	if err != nil {
		return err
	}
	return w.Producer.Publish(ctx, TopicFor(w.TopicPrefix, record.Name), record.PropertyID, payload, headers)
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) logError(msg, id string, err error) {
	if w.Logger == nil {
		return
	}
	w.Logger.Error(msg, "event_id", id, "worker_id", w.ID, "error", err)
}
