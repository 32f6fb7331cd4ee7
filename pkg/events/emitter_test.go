package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reqctx "github.com/preuvely/storematch/pkg/context"
	"github.com/preuvely/storematch/pkg/kafka"
	"github.com/preuvely/storematch/pkg/models"
)

type recordingPublisher struct {
	events []*kafka.StoreEvent
	err    error
}

func (p *recordingPublisher) PublishStoreEvent(_ context.Context, event *kafka.StoreEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func newEmitter(publisher Publisher) *Emitter {
	return NewEmitter(publisher, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestEmitStoreSubmitted(t *testing.T) {
	publisher := &recordingPublisher{}
	ctx := reqctx.SetRequestID(context.Background(), "req-1")

	store := &models.Store{ID: "s1", Name: "New Store", Slug: "new-store", Status: models.StoreStatusPending}
	require.NoError(t, newEmitter(publisher).EmitStoreSubmitted(ctx, store))

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, EventStoreSubmitted, event.EventType)
	assert.Equal(t, "s1", event.StoreID)
	assert.Equal(t, "New Store", event.Name)
	assert.Equal(t, "req-1", event.RequestID)

	var decoded models.Store
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, "new-store", decoded.Slug)
}

func TestEmitDuplicateDetected(t *testing.T) {
	publisher := &recordingPublisher{}
	result := models.DuplicateOf(models.DuplicateTypeHandle, models.Store{ID: "s9", Name: "Amazon Store"})

	require.NoError(t, newEmitter(publisher).EmitDuplicateDetected(context.Background(), "New Store", result))

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, EventStoreDuplicateDetected, event.EventType)
	assert.Equal(t, "s9", event.StoreID)
	assert.Equal(t, "New Store", event.Name)
	assert.JSONEq(t,
		`{"has_duplicate":true,"duplicate_type":"handle","existing_store":{"id":"s9","name":"Amazon Store","slug":"","is_verified":false,"avg_rating":0,"reviews_count":0}}`,
		string(event.Data),
	)
}

func TestEmitReturnsPublisherErrors(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	emitter := newEmitter(publisher)

	err := emitter.EmitStoreSubmitted(context.Background(), &models.Store{ID: "s1"})
	assert.EqualError(t, err, "broker down")

	err = emitter.EmitDuplicateDetected(context.Background(), "x", models.NoDuplicate())
	assert.EqualError(t, err, "broker down")
	assert.Empty(t, publisher.events[1].StoreID)
}

func TestDiscardPublisher(t *testing.T) {
	assert.NoError(t, newEmitter(DiscardPublisher{}).EmitStoreSubmitted(context.Background(), &models.Store{ID: "s1"}))
}
