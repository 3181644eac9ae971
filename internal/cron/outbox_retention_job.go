package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/metrics"
)

const (
	defaultOutboxRetention   = 30 * 24 * time.Hour
	defaultDLQRetention      = 90 * 24 * time.Hour
	defaultOutboxDeleteBatch = 1000
	maxRetentionRounds       = 50
)

// OutboxRetentionJobParams configure purging of published outbox rows and,
// when DeadLetters is set, of dead letters past DLQRetention.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Repository   outboxRetentionRepo
	DeadLetters  dlqRetentionRepo
	Metrics      *metrics.CronJobMetrics
	Retention    time.Duration
	DLQRetention time.Duration
	BatchSize    int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type batchDelete func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	dlqRetention := params.DLQRetention
	if dlqRetention <= 0 {
		dlqRetention = defaultDLQRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOutboxDeleteBatch
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		repo:         params.Repository,
		deadLetters:  params.DeadLetters,
		metrics:      params.Metrics,
		retention:    retention,
		dlqRetention: dlqRetention,
		batch:        batch,
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	repo         outboxRetentionRepo
	deadLetters  dlqRetentionRepo
	metrics      *metrics.CronJobMetrics
	retention    time.Duration
	dlqRetention time.Duration
	batch        int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.retention)
	deleted, err := j.drain(ctx, j.repo.DeletePublishedBefore, cutoff)
	j.metrics.AddAffected(j.Name(), deleted)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	fields := map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}
	if j.deadLetters != nil {
		dlqCutoff := now.Add(-j.dlqRetention)
		purged, err := j.drain(ctx, j.deadLetters.DeleteFailedBefore, dlqCutoff)
		j.metrics.AddAffected(j.Name(), purged)
		if err != nil {
			return fmt.Errorf("outbox dlq retention: %w", err)
		}
		fields["dlq_cutoff"] = dlqCutoff
		fields["dlq_rows_deleted"] = purged
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention cleanup complete")
	return nil
}

// drain deletes in batches until a short batch or the round cap.
func (j *outboxRetentionJob) drain(ctx context.Context, del batchDelete, cutoff time.Time) (int64, error) {
	var total int64
	for round := 0; round < maxRetentionRounds; round++ {
		rows, err := del(ctx, cutoff, j.batch)
		total += rows
		if err != nil {
			return total, err
		}
		if rows < int64(j.batch) {
			break
		}
	}
	return total, nil
}
