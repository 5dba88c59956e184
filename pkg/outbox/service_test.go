package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/foodbowl/foodbowl-backend/internal/testutil"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/outbox"
)

func TestEmitStoresEnvelopeInsideTransaction(t *testing.T) {
	client := testutil.OpenSQLite(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, logger.Nop())

	aggregateID := uuid.New()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryAssigned,
			AggregateType: enums.AggregateShopOrder,
			AggregateID:   aggregateID,
			Actor:         outbox.Actor(uuid.New(), enums.UserRoleDeliveryBoy),
			Data:          map[string]string{"workerId": "w-1"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.FetchUnpublished(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, aggregateID, rows[0].AggregateID)

	var envelope outbox.Envelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, outbox.SchemaVersion, envelope.SchemaVersion)
	assert.Equal(t, rows[0].ID, envelope.EventID)
	assert.Equal(t, enums.EventDeliveryAssigned, envelope.EventType)
	assert.Equal(t, aggregateID, envelope.AggregateID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, enums.UserRoleDeliveryBoy, envelope.Actor.Role)
	assert.False(t, envelope.OccurredAt.IsZero())
	assert.JSONEq(t, `{"workerId":"w-1"}`, string(envelope.Data))
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	client := testutil.OpenSQLite(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	cases := map[string]outbox.DomainEvent{
		"unknown type":      {EventType: "order_teleported", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()},
		"unknown aggregate": {EventType: enums.EventOrderPlaced, AggregateType: "cart", AggregateID: uuid.New()},
		"no aggregate id":   {EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder},
		"unmarshalable":     {EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Data: make(chan int)},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
				return svc.Emit(context.Background(), tx, event)
			})
			assert.Error(t, err)
		})
	}

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	client := testutil.OpenSQLite(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return errors.New("claim failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := outbox.NewService(outbox.NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, outbox.DomainEvent{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder})
	assert.Error(t, err)
}

func TestMarkFailedExcludesExhaustedEvents(t *testing.T) {
	client := testutil.OpenSQLite(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		})
	}))

	rows, err := repo.FetchUnpublished(context.Background(), 10, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkFailed(context.Background(), rows[0].ID, errors.New("pubsub down")))

	rows, err = repo.FetchUnpublished(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
