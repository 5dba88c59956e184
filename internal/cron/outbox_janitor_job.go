package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

const (
	defaultOutboxKeep        = 7 * 24 * time.Hour
	defaultOutboxMaxAttempts = 10
	stuckSampleSize          = 20
)

type outboxMaintainer interface {
	PrunePublished(ctx context.Context, cutoff time.Time) (int64, error)
	Exhausted(ctx context.Context, maxAttempts, limit int) ([]models.OutboxEvent, int64, error)
}

type OutboxJanitorJobParams struct {
	Logger *logger.Logger
	Outbox outboxMaintainer
	// Keep is how long published rows survive before pruning.
	Keep time.Duration
	// MaxAttempts must match the relay's give-up threshold.
	MaxAttempts int
}

// NewOutboxJanitorJob prunes published outbox rows and reports events the
// relay stopped retrying. Stuck rows are never deleted.
func NewOutboxJanitorJob(params OutboxJanitorJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	keep := params.Keep
	if keep <= 0 {
		keep = defaultOutboxKeep
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultOutboxMaxAttempts
	}
	return &outboxJanitorJob{
		logg:        params.Logger,
		outbox:      params.Outbox,
		keep:        keep,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}, nil
}

type outboxJanitorJob struct {
	logg        *logger.Logger
	outbox      outboxMaintainer
	keep        time.Duration
	maxAttempts int
	now         func() time.Time
}

func (j *outboxJanitorJob) Name() string { return "outbox-janitor" }

func (j *outboxJanitorJob) Run(ctx context.Context) error {
	var errs error

	cutoff := j.now().UTC().Add(-j.keep)
	pruned, err := j.outbox.PrunePublished(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune published: %w", err))
	} else if pruned > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"cutoff": cutoff,
			"pruned": pruned,
		}), "pruned published outbox events")
	}

	stuck, total, err := j.outbox.Exhausted(ctx, j.maxAttempts, stuckSampleSize)
	if err != nil {
		return multierr.Append(errs, fmt.Errorf("scan exhausted: %w", err))
	}
	if total > 0 {
		ids := make([]string, 0, len(stuck))
		for _, ev := range stuck {
			ids = append(ids, ev.ID.String())
		}
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"stuck_total":  total,
			"max_attempts": j.maxAttempts,
			"sample_ids":   ids,
		})
		j.logg.Warn(logCtx, "outbox events exhausted their publish attempts")
	}
	return errs
}
