package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/foodbowl/foodbowl-backend/pkg/config"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxStore interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
}

type storeFactory func(tx *gorm.DB) outboxStore

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type RelayParams struct {
	Outbox    config.OutboxConfig
	Logger    *logger.Logger
	DB        dbClient
	PubSub    pinger
	Stores    storeFactory
	Publisher publisher
}

// Relay moves committed outbox rows onto the orders topic. Rows are locked for
// the length of one batch so two relays never publish the same event twice in
// the same pass.
type Relay struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pinger
	stores       storeFactory
	publisher    publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Stores == nil:
		return nil, errors.New("outbox store factory is required")
	case params.Publisher == nil:
		return nil, errors.New("publisher is required")
	}

	r := &Relay{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		stores:       params.Stores,
		publisher:    params.Publisher,
		batchSize:    params.Outbox.BatchSize,
		maxAttempts:  params.Outbox.MaxAttempts,
		pollInterval: time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	return r, nil
}

// Run drains until ctx is canceled. A full batch is followed straight away by
// the next one; an idle pass waits one poll interval; failures back off.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	backoff := newBackoff(r.pollInterval)
	for {
		n, err := r.drain(ctx)
		var wait time.Duration
		switch {
		case ctx.Err() != nil:
			r.logg.Info(ctx, "outbox relay stopping")
			return ctx.Err()
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait, _ = backoff.Next()
		case n >= r.batchSize:
			backoff = newBackoff(r.pollInterval)
			continue
		default:
			backoff = newBackoff(r.pollInterval)
			wait = r.pollInterval
		}

		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "outbox relay stopping")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// drain publishes one batch and returns how many rows it picked up.
func (r *Relay) drain(ctx context.Context) (int, error) {
	var picked int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		store := r.stores(tx)
		events, err := store.FetchUnpublished(ctx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		picked = len(events)
		if picked == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()

		// hand the whole batch to the client first so it can bundle requests
		pending := make([]publishResult, len(events))
		for i, event := range events {
			pending[i] = r.publisher.Publish(publishCtx, message(event))
		}

		for i, event := range events {
			logCtx := r.logg.WithFields(ctx, map[string]any{
				"outbox_id":     event.ID.String(),
				"event_type":    string(event.EventType),
				"aggregate_id":  event.AggregateID.String(),
				"attempt_count": event.AttemptCount + 1,
			})

			pubErr := errors.New("publisher returned no result")
			var serverID string
			if pending[i] != nil {
				serverID, pubErr = pending[i].Get(publishCtx)
			}
			if pubErr != nil {
				if event.AttemptCount+1 >= r.maxAttempts {
					r.logg.Error(logCtx, "outbox event exhausted publish attempts", pubErr)
				} else {
					r.logg.Warn(r.logg.WithField(logCtx, "error", pubErr.Error()), "outbox publish failed")
				}
				if err := store.MarkFailed(ctx, event.ID, pubErr); err != nil {
					return fmt.Errorf("mark %s failed: %w", event.ID, err)
				}
				continue
			}

			if err := store.MarkPublished(ctx, event.ID); err != nil {
				return fmt.Errorf("mark %s published: %w", event.ID, err)
			}
			r.logg.Info(r.logg.WithField(logCtx, "message_id", serverID), "outbox event published")
		}
		return nil
	})
	return picked, err
}

// message keeps routing data in attributes so subscriptions can filter on
// event_type without decoding the envelope.
func message(event models.OutboxEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       event.ID.String(),
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"schema_version": fmt.Sprint(outbox.SchemaVersion),
		},
	}
}

func newBackoff(base time.Duration) retry.Backoff {
	b := retry.NewExponential(base)
	b = retry.WithJitter(jitterWindow, b)
	return retry.WithCappedDuration(maxBackoff, b)
}

func repositoryStores(repo *outbox.Repository) storeFactory {
	return func(tx *gorm.DB) outboxStore {
		return repo.WithTx(tx)
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}
