package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gameshelf/apiserver/types"
	"github.com/google/uuid"
)

// ModerationRepository performs the coupled writes behind moderation
// actions. Every method runs its statements inside one transaction so a
// role/ban mutation and its audit row are never observable apart.
//
// State guards live in the UPDATE predicates (e.g. "AND NOT is_banned");
// a guarded statement touching zero rows aborts the transaction with
// ErrConflict, which lets concurrent interleavings settle as defined
// rejections instead of dirty writes.
type ModerationRepository struct {
	db *sql.DB
}

func NewModerationRepository(db *sql.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

func (r *ModerationRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertActivity(ctx context.Context, tx *sql.Tx, entry types.ActivityEntry) error {
	const query = `
		INSERT INTO moderator_activity (moderator_id, action_type, target_type, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.ExecContext(
		ctx,
		query,
		entry.ModeratorID,
		string(entry.Action),
		string(entry.Target.Kind),
		entry.Target.ID,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func userExists(ctx context.Context, tx *sql.Tx, id int) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// guardResult maps a zero-row guarded update to ErrNotFound when the row is
// gone or ErrConflict when it exists but failed the state predicate.
func guardResult(ctx context.Context, tx *sql.Tx, result sql.Result, targetID int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	exists, err := userExists(ctx, tx, targetID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// ApplyBan sets the ban flags, opens a ban-history record, and appends the
// audit row in one transaction.
func (r *ModerationRepository) ApplyBan(ctx context.Context, targetID, actorID int, reason *string, details string) error {
	now := time.Now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		const update = `
			UPDATE users
			SET is_banned = TRUE, banned_at = $1, banned_by = $2, ban_reason = $3, updated_at = $1
			WHERE id = $4 AND NOT is_banned`
		result, err := tx.ExecContext(ctx, update, now, actorID, reason, targetID)
		if err != nil {
			return err
		}
		if err := guardResult(ctx, tx, result, targetID); err != nil {
			return err
		}

		const history = `
			INSERT INTO ban_history (user_id, banned_by, ban_reason, banned_at)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.ExecContext(ctx, history, targetID, actorID, reason, now); err != nil {
			return fmt.Errorf("open ban history: %w", err)
		}

		return insertActivity(ctx, tx, types.ActivityEntry{
			ModeratorID: actorID,
			Action:      types.ActionBanUser,
			Target:      types.UserTarget(targetID),
			Details:     details,
			CreatedAt:   now,
		})
	})
}

// ApplyUnban clears the ban flags, closes the open ban-history record, and
// appends the audit row in one transaction.
func (r *ModerationRepository) ApplyUnban(ctx context.Context, targetID, actorID int, details string) error {
	now := time.Now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		const update = `
			UPDATE users
			SET is_banned = FALSE, banned_at = NULL, banned_by = NULL, ban_reason = NULL, updated_at = $1
			WHERE id = $2 AND is_banned`
		result, err := tx.ExecContext(ctx, update, now, targetID)
		if err != nil {
			return err
		}
		if err := guardResult(ctx, tx, result, targetID); err != nil {
			return err
		}

		const history = `
			UPDATE ban_history
			SET unbanned_at = $1, unbanned_by = $2
			WHERE user_id = $3 AND unbanned_at IS NULL`
		if _, err := tx.ExecContext(ctx, history, now, actorID, targetID); err != nil {
			return fmt.Errorf("close ban history: %w", err)
		}

		return insertActivity(ctx, tx, types.ActivityEntry{
			ModeratorID: actorID,
			Action:      types.ActionUnbanUser,
			Target:      types.UserTarget(targetID),
			Details:     details,
			CreatedAt:   now,
		})
	})
}

// ApplyPromote grants moderator status and appends the audit row.
func (r *ModerationRepository) ApplyPromote(ctx context.Context, targetID, actorID int, details string) error {
	now := time.Now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		const update = `
			UPDATE users
			SET is_moderator = TRUE, updated_at = $1
			WHERE id = $2 AND NOT is_moderator`
		result, err := tx.ExecContext(ctx, update, now, targetID)
		if err != nil {
			return err
		}
		if err := guardResult(ctx, tx, result, targetID); err != nil {
			return err
		}

		return insertActivity(ctx, tx, types.ActivityEntry{
			ModeratorID: actorID,
			Action:      types.ActionPromoteModerator,
			Target:      types.UserTarget(targetID),
			Details:     details,
			CreatedAt:   now,
		})
	})
}

// ApplyDemote revokes moderator status and appends the audit row. The
// predicate excludes admins so a racing out-of-band promotion to admin
// cannot be demoted through this path.
func (r *ModerationRepository) ApplyDemote(ctx context.Context, targetID, actorID int, details string) error {
	now := time.Now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		const update = `
			UPDATE users
			SET is_moderator = FALSE, updated_at = $1
			WHERE id = $2 AND is_moderator AND NOT is_admin`
		result, err := tx.ExecContext(ctx, update, now, targetID)
		if err != nil {
			return err
		}
		if err := guardResult(ctx, tx, result, targetID); err != nil {
			return err
		}

		return insertActivity(ctx, tx, types.ActivityEntry{
			ModeratorID: actorID,
			Action:      types.ActionDemoteModerator,
			Target:      types.UserTarget(targetID),
			Details:     details,
			CreatedAt:   now,
		})
	})
}

// ApplyDelete removes the target's owned rows, writes the final audit row
// attributed to the actor, enqueues the directory deletion in the outbox,
// and deletes the user row, all in one local transaction. The directory
// record itself is a separate consistency domain handled by the caller and
// the reconciler.
func (r *ModerationRepository) ApplyDelete(ctx context.Context, targetID, actorID int, targetUsername, details string, outboxID uuid.UUID) error {
	now := time.Now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`DELETE FROM game_list_entries WHERE list_id IN (SELECT id FROM game_lists WHERE user_id = $1)`,
			`DELETE FROM game_lists WHERE user_id = $1`,
			`DELETE FROM follows WHERE follower_id = $1 OR following_id = $1`,
			`DELETE FROM ban_history WHERE user_id = $1`,
			`DELETE FROM moderator_activity WHERE moderator_id = $1`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, targetID); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND NOT is_admin`, targetID)
		if err != nil {
			return err
		}
		if err := guardResult(ctx, tx, result, targetID); err != nil {
			return err
		}

		const outbox = `
			INSERT INTO deletion_outbox (id, user_id, username, enqueued_at)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.ExecContext(ctx, outbox, outboxID, targetID, targetUsername, now); err != nil {
			return fmt.Errorf("enqueue directory deletion: %w", err)
		}

		return insertActivity(ctx, tx, types.ActivityEntry{
			ModeratorID: actorID,
			Action:      types.ActionDeleteUser,
			Target:      types.UserTarget(targetID),
			Details:     details,
			CreatedAt:   now,
		})
	})
}

// OpenBan returns the open ban-history record for a user, if any.
func (r *ModerationRepository) OpenBan(ctx context.Context, userID int) (types.BanRecord, error) {
	const query = `
		SELECT id, user_id, banned_by, ban_reason, banned_at, unbanned_at, unbanned_by
		FROM ban_history
		WHERE user_id = $1 AND unbanned_at IS NULL`
	var record types.BanRecord
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&record.ID,
		&record.UserID,
		&record.BannedBy,
		&record.BanReason,
		&record.BannedAt,
		&record.UnbannedAt,
		&record.UnbannedBy,
	)
	if err == sql.ErrNoRows {
		return types.BanRecord{}, ErrNotFound
	}
	if err != nil {
		return types.BanRecord{}, err
	}
	return record, nil
}

// BanHistory returns a user's ban records, newest first.
func (r *ModerationRepository) BanHistory(ctx context.Context, userID int) ([]types.BanRecord, error) {
	const query = `
		SELECT id, user_id, banned_by, ban_reason, banned_at, unbanned_at, unbanned_by
		FROM ban_history
		WHERE user_id = $1
		ORDER BY banned_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]types.BanRecord, 0, 4)
	for rows.Next() {
		var record types.BanRecord
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.BannedBy,
			&record.BanReason,
			&record.BannedAt,
			&record.UnbannedAt,
			&record.UnbannedBy,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
