package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodbowl/foodbowl-backend/internal/testutil"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/outbox"
)

type fakeOutboxMaintainer struct {
	cutoff      time.Time
	maxAttempts int
	pruneErr    error
	scanErr     error
	stuck       []models.OutboxEvent
}

func (f *fakeOutboxMaintainer) PrunePublished(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.pruneErr
}

func (f *fakeOutboxMaintainer) Exhausted(_ context.Context, maxAttempts, limit int) ([]models.OutboxEvent, int64, error) {
	f.maxAttempts = maxAttempts
	if f.scanErr != nil {
		return nil, 0, f.scanErr
	}
	if len(f.stuck) > limit {
		return f.stuck[:limit], int64(len(f.stuck)), nil
	}
	return f.stuck, int64(len(f.stuck)), nil
}

func newJanitor(t *testing.T, repo outboxMaintainer, maxAttempts int) *outboxJanitorJob {
	t.Helper()
	job, err := NewOutboxJanitorJob(OutboxJanitorJobParams{Logger: logger.Nop(), Outbox: repo, MaxAttempts: maxAttempts})
	require.NoError(t, err)
	return job.(*outboxJanitorJob)
}

func TestOutboxJanitorUsesDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeOutboxMaintainer{stuck: []models.OutboxEvent{{ID: uuid.New(), EventType: enums.EventPaymentPaid}}}
	job := newJanitor(t, repo, 0)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-defaultOutboxKeep), repo.cutoff)
	assert.Equal(t, defaultOutboxMaxAttempts, repo.maxAttempts)
	assert.Equal(t, "outbox-janitor", job.Name())
}

func TestOutboxJanitorCombinesErrors(t *testing.T) {
	repo := &fakeOutboxMaintainer{pruneErr: errors.New("locked"), scanErr: errors.New("gone")}
	err := newJanitor(t, repo, 4).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune published: locked")
	assert.Contains(t, err.Error(), "scan exhausted: gone")

	repo = &fakeOutboxMaintainer{pruneErr: errors.New("locked")}
	err = newJanitor(t, repo, 4).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4, repo.maxAttempts, "scan still runs after a prune failure")
}

func TestOutboxJanitorRequiresCollaborators(t *testing.T) {
	_, err := NewOutboxJanitorJob(OutboxJanitorJobParams{Outbox: &fakeOutboxMaintainer{}})
	assert.Error(t, err)
	_, err = NewOutboxJanitorJob(OutboxJanitorJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}

func TestOutboxJanitorAgainstRepository(t *testing.T) {
	db := testutil.OpenSQLite(t).DB()
	repo := outbox.NewRepository(db)
	now := time.Now().UTC()
	old := now.Add(-30 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &recent},
		{EventType: enums.EventPaymentFailed, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), AttemptCount: 5},
		{EventType: enums.EventPaymentPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), AttemptCount: 1},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	require.NoError(t, newJanitor(t, repo, 5).Run(context.Background()))

	var remaining int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.EqualValues(t, 3, remaining)

	stuck, total, err := repo.Exhausted(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, stuck, 1)
	assert.Equal(t, rows[2].ID, stuck[0].ID)
}
