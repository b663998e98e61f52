package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeletionTask is one pending identity-provider deletion. Rows are written
// inside the admin-delete transaction and drained by the reconciler until
// the directory confirms the deletion.
type DeletionTask struct {
	ID          uuid.UUID
	UserID      int
	Username    string
	EnqueuedAt  time.Time
	CompletedAt *time.Time
	Attempts    int
	LastError   *string
}

// OutboxRepository handles persistence for the deletion outbox.
type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Pending returns unfinished tasks, oldest first.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]DeletionTask, error) {
	if limit < 1 {
		limit = 10
	}
	const query = `
		SELECT id, user_id, username, enqueued_at, completed_at, attempts, last_error
		FROM deletion_outbox
		WHERE completed_at IS NULL
		ORDER BY enqueued_at
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]DeletionTask, 0, limit)
	for rows.Next() {
		var task DeletionTask
		if err := rows.Scan(
			&task.ID,
			&task.UserID,
			&task.Username,
			&task.EnqueuedAt,
			&task.CompletedAt,
			&task.Attempts,
			&task.LastError,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// MarkCompleted closes a task once the directory deletion succeeded.
func (r *OutboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE deletion_outbox
		SET completed_at = $1, attempts = attempts + 1, last_error = NULL
		WHERE id = $2 AND completed_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordFailure notes a failed attempt so operators can see the divergence.
func (r *OutboxRepository) RecordFailure(ctx context.Context, id uuid.UUID, reason string) error {
	const query = `
		UPDATE deletion_outbox
		SET attempts = attempts + 1, last_error = $1
		WHERE id = $2 AND completed_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, reason, id)
	return err
}
