package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/devicetrade-backend/internal/orders"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/metrics"
)

const (
	defaultPendingPaymentTTL = 30 * time.Minute
	defaultExpireBatchSize   = 100
	maxExpireRounds          = 20
)

// OrderTTLJobParams configure the pending payment expiry job.
type OrderTTLJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderExpirer
	Metrics   *metrics.CronJobMetrics
	TTL       time.Duration
	BatchSize int
}

type staleOrderExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (orders.ExpireResult, error)
}

// NewOrderTTLJob builds the job that cancels orders left in PENDING_PAYMENT
// past the TTL and hands their devices back to the catalog.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingPaymentTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpireBatchSize
	}
	return &orderTTLJob{
		logg:    params.Logger,
		orders:  params.Orders,
		metrics: params.Metrics,
		ttl:     ttl,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type orderTTLJob struct {
	logg    *logger.Logger
	orders  staleOrderExpirer
	metrics *metrics.CronJobMetrics
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

// Run drains stale orders batch by batch. A batch that only skips orders ends
// the run so rows that keep failing are not rescanned forever.
func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	var (
		total orders.ExpireResult
		errs  error
	)
	for round := 0; round < maxExpireRounds; round++ {
		result, err := j.orders.ExpireStale(ctx, cutoff, j.batch)
		total.Scanned += result.Scanned
		total.Cancelled += result.Cancelled
		total.Skipped += result.Skipped
		errs = multierr.Append(errs, err)
		if err != nil || result.Scanned < j.batch || result.Cancelled == 0 {
			break
		}
	}
	j.metrics.AddAffected(j.Name(), int64(total.Cancelled))

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"scanned":   total.Scanned,
		"cancelled": total.Cancelled,
		"skipped":   total.Skipped,
	})
	j.logg.Info(logCtx, "pending payment expiry complete")
	if errs != nil {
		return fmt.Errorf("order ttl: %w", errs)
	}
	return nil
}
