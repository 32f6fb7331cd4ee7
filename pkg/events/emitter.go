// Package events handles event emission for store submissions
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	reqctx "github.com/preuvely/storematch/pkg/context"
	"github.com/preuvely/storematch/pkg/kafka"
	"github.com/preuvely/storematch/pkg/models"
	"github.com/preuvely/storematch/pkg/tracing"
)

const (
	EventStoreSubmitted         = "store.submitted"
	EventStoreDuplicateDetected = "store.duplicate_detected"
)

// Publisher sends store events to the event bus
type Publisher interface {
	PublishStoreEvent(ctx context.Context, event *kafka.StoreEvent) error
}

// DiscardPublisher drops every event. Used when Kafka is disabled.
type DiscardPublisher struct{}

func (DiscardPublisher) PublishStoreEvent(context.Context, *kafka.StoreEvent) error { return nil }

// Emitter handles event emission for store submissions
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitStoreSubmitted emits an event for a newly persisted store
func (e *Emitter) EmitStoreSubmitted(ctx context.Context, store *models.Store) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitStoreSubmitted")
	defer span.End()

	data, err := json.Marshal(store)
	if err != nil {
		return err
	}

	event := &kafka.StoreEvent{
		EventType: EventStoreSubmitted,
		StoreID:   store.ID,
		Name:      store.Name,
		Data:      data,
		RequestID: reqctx.GetRequestID(ctx),
	}

	if err := e.publisher.PublishStoreEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit store.submitted event")
		return err
	}

	return nil
}

// EmitDuplicateDetected emits an event when a submission collides with an existing store
func (e *Emitter) EmitDuplicateDetected(ctx context.Context, name string, result models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicateDetected")
	defer span.End()

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	event := &kafka.StoreEvent{
		EventType: EventStoreDuplicateDetected,
		Name:      name,
		Data:      data,
		RequestID: reqctx.GetRequestID(ctx),
	}
	if result.ExistingStore != nil {
		event.StoreID = result.ExistingStore.ID
	}

	if err := e.publisher.PublishStoreEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit store.duplicate_detected event")
		return err
	}

	return nil
}
