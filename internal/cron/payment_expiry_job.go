package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

const (
	defaultPaymentTTL   = 30 * time.Minute
	paymentExpiryBatch  = 100
	paymentExpiryRounds = 10
)

type paymentExpirer interface {
	ExpireStale(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

type PaymentExpiryJobParams struct {
	Logger   *logger.Logger
	Payments paymentExpirer
	TTL      time.Duration
	Batch    int
}

// NewPaymentExpiryJob fails gateway orders that stayed unpaid past the TTL.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPaymentTTL
	}
	batch := params.Batch
	if batch <= 0 {
		batch = paymentExpiryBatch
	}
	return &paymentExpiryJob{
		logg:     params.Logger,
		payments: params.Payments,
		ttl:      ttl,
		batch:    batch,
	}, nil
}

type paymentExpiryJob struct {
	logg     *logger.Logger
	payments paymentExpirer
	ttl      time.Duration
	batch    int
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

// Run drains stale orders batch by batch, stopping after a short batch or a
// fixed number of rounds so one cycle cannot run unbounded.
func (j *paymentExpiryJob) Run(ctx context.Context) error {
	total := 0
	for round := 0; round < paymentExpiryRounds; round++ {
		expired, err := j.payments.ExpireStale(ctx, j.ttl, j.batch)
		total += expired
		if err != nil {
			return fmt.Errorf("payment expiry: %w", err)
		}
		if expired < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"ttl":     j.ttl.String(),
		"expired": total,
	})
	j.logg.Info(logCtx, "payment expiry complete")
	return nil
}
