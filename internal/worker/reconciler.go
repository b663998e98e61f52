// Package worker runs background jobs alongside the HTTP server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/gameshelf/apiserver/internal/directory"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/google/uuid"
)

const (
	defaultInterval  = 30 * time.Second
	defaultBatchSize = 10
)

// OutboxSource is the slice of the outbox repository the reconciler drains.
type OutboxSource interface {
	Pending(ctx context.Context, limit int) ([]store.DeletionTask, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, reason string) error
}

// RetryRecorder counts reconciler retries. Satisfied by *metrics.Collector.
type RetryRecorder interface {
	RecordReconcilerRetry()
}

// Reconciler retries identity-provider deletions until the directory
// confirms them. The local rows are already gone when a task is enqueued;
// this closes the cross-system gap the admin delete cannot make atomic.
type Reconciler struct {
	outbox    OutboxSource
	directory directory.UserDirectory
	metrics   RetryRecorder
	log       *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewReconciler builds a reconciler polling at the given interval.
// A non-positive interval falls back to the default.
func NewReconciler(outbox OutboxSource, dir directory.UserDirectory, metrics RetryRecorder, log *slog.Logger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Reconciler{
		outbox:    outbox,
		directory: dir,
		metrics:   metrics,
		log:       log,
		interval:  interval,
		batchSize: defaultBatchSize,
	}
}

// Run polls the outbox until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain processes one batch of pending deletions. Exposed for tests and
// for an eager pass at startup.
func (r *Reconciler) Drain(ctx context.Context) {
	tasks, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		r.log.Error("reconciler: failed to load pending deletions", "error", err)
		return
	}

	for _, task := range tasks {
		if task.Attempts > 0 && r.metrics != nil {
			r.metrics.RecordReconcilerRetry()
		}
		if err := r.directory.DeleteUser(ctx, task.UserID); err != nil {
			r.log.Warn("reconciler: directory deletion still failing",
				"user_id", task.UserID,
				"username", task.Username,
				"attempts", task.Attempts+1,
				"error", err,
			)
			if recordErr := r.outbox.RecordFailure(ctx, task.ID, err.Error()); recordErr != nil {
				r.log.Error("reconciler: failed to record attempt", "outbox_id", task.ID, "error", recordErr)
			}
			continue
		}
		if err := r.outbox.MarkCompleted(ctx, task.ID); err != nil {
			r.log.Error("reconciler: failed to close task", "outbox_id", task.ID, "error", err)
			continue
		}
		r.log.Info("reconciler: directory deletion confirmed",
			"user_id", task.UserID,
			"username", task.Username,
		)
	}
}
