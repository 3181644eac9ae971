package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/metrics"
)

func TestOutboxRetentionJobDeletesPublishedRows(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{deleted: []int64{7}}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: repo, Retention: 48 * time.Hour})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-48 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.lastLimit != defaultOutboxDeleteBatch {
		t.Fatalf("expected limit %d, got %d", defaultOutboxDeleteBatch, repo.lastLimit)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestOutboxRetentionJobLoopsWhileBatchesAreFull(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{deleted: []int64{5, 5, 2}}
	reg := prometheus.NewRegistry()
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{
		Repository: repo,
		BatchSize:  5,
		Metrics:    metrics.NewCronJobMetrics(reg),
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.called != 3 {
		t.Fatalf("expected three batches, got %d", repo.called)
	}
	if got := affectedRows(t, reg, "outbox-retention"); got != 12 {
		t.Fatalf("expected 12 affected rows, got %v", got)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: repo})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionJobPurgesDeadLetters(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{deleted: []int64{1}}
	dlq := &fakeDLQRetentionRepo{fakeOutboxRetentionRepo{deleted: []int64{3}}}
	reg := prometheus.NewRegistry()
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{
		Repository:   repo,
		DeadLetters:  dlq,
		DLQRetention: 10 * 24 * time.Hour,
		Metrics:      metrics.NewCronJobMetrics(reg),
	})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-10 * 24 * time.Hour); !dlq.lastCutoff.Equal(want) {
		t.Fatalf("expected dlq cutoff %s, got %s", want, dlq.lastCutoff)
	}
	if got := affectedRows(t, reg, "outbox-retention"); got != 4 {
		t.Fatalf("expected 4 affected rows, got %v", got)
	}

	dlq.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected dlq purge error")
	}
}

func TestOutboxRetentionJobDefaults(t *testing.T) {
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: &fakeOutboxRetentionRepo{}})
	if job.retention != defaultOutboxRetention || job.dlqRetention != defaultDLQRetention {
		t.Fatalf("expected default retention, got %s and %s", job.retention, job.dlqRetention)
	}
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: job.logg}); err == nil {
		t.Fatal("expected repository error")
	}
}

func newOutboxRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test"})
	jobIface, err := NewOutboxRetentionJob(params)
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeOutboxRetentionRepo struct {
	deleted    []int64
	lastCutoff time.Time
	lastLimit  int
	called     int
	err        error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	round := f.called
	f.called++
	f.lastCutoff = cutoff
	f.lastLimit = limit
	if f.err != nil {
		return 0, f.err
	}
	if round < len(f.deleted) {
		return f.deleted[round], nil
	}
	return 0, nil
}

type fakeDLQRetentionRepo struct {
	fakeOutboxRetentionRepo
}

func (f *fakeDLQRetentionRepo) DeleteFailedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	return f.DeletePublishedBefore(ctx, cutoff, limit)
}
