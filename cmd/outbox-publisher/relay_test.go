package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/foodbowl/foodbowl-backend/internal/testutil"
	"github.com/foodbowl/foodbowl-backend/pkg/config"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/outbox"
)

func TestDrainMarksEachEventByItsOwnResult(t *testing.T) {
	store := &fakeStore{events: []models.OutboxEvent{
		{ID: uuid.New(), EventType: enums.EventDeliveryAssigned, AggregateType: enums.AggregateShopOrder, AggregateID: uuid.New()},
		{ID: uuid.New(), EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New()},
	}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{id: "m-2"},
	}}
	relay := newTestRelay(t, store, pub, config.OutboxConfig{BatchSize: 2, MaxAttempts: 5})

	n, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{store.events[0].ID}, store.failed)
	assert.Equal(t, []uuid.UUID{store.events[1].ID}, store.published)

	require.Len(t, pub.sent, 2)
	first := pub.sent[0].Attributes
	assert.Equal(t, "delivery_assigned", first["event_type"])
	assert.Equal(t, "shop_order", first["aggregate_type"])
	assert.Equal(t, store.events[0].AggregateID.String(), first["aggregate_id"])
	assert.Equal(t, "1", first["schema_version"])
}

func TestDrainIdle(t *testing.T) {
	relay := newTestRelay(t, &fakeStore{}, &fakePublisher{}, config.OutboxConfig{})

	n, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, defaultBatchSize, relay.batchSize)
	assert.Equal(t, defaultMaxAttempts, relay.maxAttempts)
	assert.Equal(t, defaultPollInterval, relay.pollInterval)
}

func TestDrainTreatsMissingResultAsFailure(t *testing.T) {
	store := &fakeStore{events: []models.OutboxEvent{{ID: uuid.New(), EventType: enums.EventPaymentPaid, AggregateType: enums.AggregateOrder}}}
	relay := newTestRelay(t, store, &fakePublisher{}, config.OutboxConfig{})

	_, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.failed, 1)
	assert.Empty(t, store.published)
}

func TestDrainSurfacesStoreErrors(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("connection reset")}
	relay := newTestRelay(t, store, &fakePublisher{}, config.OutboxConfig{})

	_, err := relay.drain(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestDrainAgainstSQLite(t *testing.T) {
	client := testutil.OpenSQLite(t)
	repo := outbox.NewRepository(client.DB())
	emitter := outbox.NewService(repo, nil)
	aggregateID := uuid.New()
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return emitter.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryCompleted,
			AggregateType: enums.AggregateShopOrder,
			AggregateID:   aggregateID,
			Data:          map[string]string{"status": "delivered"},
		})
	}))

	pub := &fakePublisher{results: []publishResult{fakePublishResult{id: "m-1"}}}
	relay, err := NewRelay(RelayParams{
		Logger:    logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:        client,
		PubSub:    okPinger{},
		Stores:    repositoryStores(repo),
		Publisher: pub,
	})
	require.NoError(t, err)

	n, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, pub.sent, 1)
	var envelope outbox.Envelope
	require.NoError(t, json.Unmarshal(pub.sent[0].Data, &envelope))
	assert.Equal(t, aggregateID, envelope.AggregateID)
	assert.Equal(t, envelope.EventID.String(), pub.sent[0].Attributes["event_id"])

	pending, err := repo.FetchUnpublished(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunStopsOnCancel(t *testing.T) {
	relay := newTestRelay(t, &fakeStore{}, &fakePublisher{}, config.OutboxConfig{PollIntervalMS: 5})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunFailsFastWhenPubSubUnreachable(t *testing.T) {
	relay, err := NewRelay(RelayParams{
		Logger:    logger.Nop(),
		DB:        &fakeDB{},
		PubSub:    failingPinger{},
		Stores:    func(*gorm.DB) outboxStore { return &fakeStore{} },
		Publisher: &fakePublisher{},
	})
	require.NoError(t, err)
	assert.ErrorContains(t, relay.Run(context.Background()), "pubsub ping")
}

func TestBackoffIsCapped(t *testing.T) {
	b := newBackoff(time.Second)
	for i := 0; i < 20; i++ {
		next, stop := b.Next()
		require.False(t, stop)
		assert.LessOrEqual(t, next, maxBackoff)
		assert.Greater(t, next, time.Duration(0))
	}
}

func newTestRelay(t *testing.T, store *fakeStore, pub publisher, outboxCfg config.OutboxConfig) *Relay {
	t.Helper()
	relay, err := NewRelay(RelayParams{
		Outbox:    outboxCfg,
		Logger:    logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:        &fakeDB{},
		PubSub:    okPinger{},
		Stores:    func(*gorm.DB) outboxStore { return store },
		Publisher: pub,
	})
	require.NoError(t, err)
	return relay
}

type fakeStore struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeStore) FetchUnpublished(context.Context, int, int) ([]models.OutboxEvent, error) {
	return f.events, f.fetchErr
}

func (f *fakeStore) MarkPublished(_ context.Context, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("topic not found") }

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	id  string
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return f.id, f.err
}
