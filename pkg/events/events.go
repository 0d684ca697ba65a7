// Package events publishes committed entity changes to external sinks.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/repository"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EntityEvent is the payload written to every sink.
type EntityEvent struct {
	EventType   string          `json:"event_type"` // tariff.created, chargingprofile.deleted, ...
	EntityType  string          `json:"entity_type"`
	EntityKey   string          `json:"entity_key"`
	DatabaseID  string          `json:"database_id"`
	Data        json.RawMessage `json:"data,omitempty"`
	TraceParent string          `json:"trace_parent,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Publisher delivers a batch of events to one sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, events []*EntityEvent) error
}

// Identity extracts the natural key and surrogate key of an entity.
type Identity[E any] func(entity E) (key string, databaseID string)

// Subscribe forwards every lifecycle event of notifier to the publishers.
// Publishing happens after the change is committed, so a failing sink is
// logged and counted but never undoes the change.
func Subscribe[E any](notifier *repository.Notifier[E], entityType string, identity Identity[E], logger ectologger.Logger, publishers ...Publisher) {
	if len(publishers) == 0 {
		return
	}

	listener := func(ctx context.Context, event repository.Event[E]) {
		ctx, span := tracing.StartSpan(ctx, "events.publish."+entityType)
		defer span.End()

		batch := Build(ctx, entityType, identity, event, logger)
		if len(batch) == 0 {
			return
		}

		eventType := entityType + "." + string(event.Type)
		for _, publisher := range publishers {
			if err := publisher.Publish(ctx, batch); err != nil {
				tracing.RecordError(span, err)
				logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"sink":       publisher.Name(),
					"event_type": eventType,
					"batch_size": len(batch),
				}).Error("Failed to publish change notification")
				metrics.EventsPublishedTotal.WithLabelValues(publisher.Name(), eventType, "error").Add(float64(len(batch)))
				continue
			}
			metrics.EventsPublishedTotal.WithLabelValues(publisher.Name(), eventType, "success").Add(float64(len(batch)))
		}
	}

	notifier.OnCreated(listener)
	notifier.OnUpdated(listener)
	notifier.OnDeleted(listener)
}

// Build turns a repository event into sink payloads, one per entity.
func Build[E any](ctx context.Context, entityType string, identity Identity[E], event repository.Event[E], logger ectologger.Logger) []*EntityEvent {
	now := time.Now().UTC()
	traceParent := tracing.GetTraceParent(ctx)

	batch := make([]*EntityEvent, 0, len(event.Entities))
	for _, entity := range event.Entities {
		data, err := json.Marshal(entity)
		if err != nil {
			logger.WithContext(ctx).WithError(err).WithField("entity_type", entityType).Error("Failed to marshal change notification")
			continue
		}
		key, databaseID := identity(entity)
		batch = append(batch, &EntityEvent{
			EventType:   entityType + "." + string(event.Type),
			EntityType:  entityType,
			EntityKey:   key,
			DatabaseID:  databaseID,
			Data:        data,
			TraceParent: traceParent,
			Timestamp:   now,
		})
	}
	return batch
}
