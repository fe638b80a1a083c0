// SPDX-License-Identifier: GPL-3.0-only

package ledger

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"silently-server/commons"
	"silently-server/metrics"
	"silently-server/models"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// Publisher receives every usage event after it has been committed.
type Publisher interface {
	Publish(ctx context.Context, event models.UsageEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.UsageEvent) error { return nil }

// Recorder is the read side of the usage trail plus standalone appends.
type Recorder struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

func newRecorder(store Store) *Recorder {
	return &Recorder{store: store, publisher: NopPublisher{}, now: time.Now}
}

// Record appends an event that does not accompany a balance change.
func (r *Recorder) Record(ctx context.Context, accountID uint, label string, creditsDelta int64) (*models.UsageEvent, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: endpoint label is required", ErrInvalidArgument)
	}
	event := &models.UsageEvent{
		AccountID:     accountID,
		EndpointLabel: label,
		CreditsDelta:  creditsDelta,
		CreatedAt:     r.now(),
	}
	if err := r.store.AppendUsageEvent(ctx, event); err != nil {
		return nil, err
	}
	r.publish(ctx, []models.UsageEvent{*event})
	return event, nil
}

// History returns up to limit events, most recent first. A non-positive
// limit means DefaultHistoryLimit; larger limits are capped at MaxHistoryLimit.
func (r *Recorder) History(ctx context.Context, accountID uint, limit int) ([]models.UsageEvent, error) {
	return r.store.ListUsageEvents(ctx, accountID, clampLimit(limit))
}

// Events yields the same rows as History. Each range over the sequence
// queries the store again.
func (r *Recorder) Events(ctx context.Context, accountID uint, limit int) iter.Seq2[models.UsageEvent, error] {
	return func(yield func(models.UsageEvent, error) bool) {
		events, err := r.History(ctx, accountID, limit)
		if err != nil {
			yield(models.UsageEvent{}, err)
			return
		}
		for _, event := range events {
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (r *Recorder) publish(ctx context.Context, events []models.UsageEvent) {
	for _, event := range events {
		err := r.publisher.Publish(context.WithoutCancel(ctx), event)
		metrics.EventsPublishedTotal.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			commons.Logger.Errorf("Failed to publish usage event %s for account %d: %v", event.EID, event.AccountID, err)
		}
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}
