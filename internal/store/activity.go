package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/gameshelf/apiserver/types"
)

// ActivityRepository reads and appends moderator audit rows. The log is
// append-only; nothing here updates or deletes existing entries.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append writes one audit row outside any moderation transaction. Used by
// the catalog-management actions, which have no coupled state mutation.
func (r *ActivityRepository) Append(ctx context.Context, entry types.ActivityEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	const query = `
		INSERT INTO moderator_activity (moderator_id, action_type, target_type, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ModeratorID,
		string(entry.Action),
		string(entry.Target.Kind),
		entry.Target.ID,
		entry.Details,
		entry.CreatedAt,
	)
	return err
}

// List returns a page of audit rows newest first, each enriched with the
// current display names of the actor and the target. The joins are LEFT
// joins on purpose: a deleted actor or target yields NULL enrichment
// instead of dropping the row.
func (r *ActivityRepository) List(ctx context.Context, actionType string, offset, limit int) ([]types.EnrichedActivityEntry, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const query = `
		SELECT a.id, a.moderator_id, a.action_type, a.target_type, a.target_id,
			a.details, a.created_at,
			m.username AS moderator_username,
			tu.username AS target_username,
			tg.name AS target_game_name
		FROM moderator_activity a
		LEFT JOIN users m ON m.id = a.moderator_id
		LEFT JOIN users tu ON a.target_type = 'user' AND tu.id = a.target_id
		LEFT JOIN games tg ON a.target_type = 'game' AND tg.id = a.target_id
		WHERE ($1 = '' OR a.action_type = $1)
		ORDER BY a.created_at DESC, a.id DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, actionType, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.EnrichedActivityEntry, 0, limit)
	for rows.Next() {
		var entry types.EnrichedActivityEntry
		var action, targetType string
		if err := rows.Scan(
			&entry.ID,
			&entry.ModeratorID,
			&action,
			&targetType,
			&entry.Target.ID,
			&entry.Details,
			&entry.CreatedAt,
			&entry.ModeratorUsername,
			&entry.TargetUsername,
			&entry.TargetGameName,
		); err != nil {
			return nil, err
		}
		entry.Action = types.ActionType(action)
		entry.Target.Kind = types.TargetKind(targetType)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByAction returns the number of audit rows per action type.
func (r *ActivityRepository) CountByAction(ctx context.Context) (map[types.ActionType]int, error) {
	const query = `SELECT action_type, COUNT(1) FROM moderator_activity GROUP BY action_type`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[types.ActionType]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[types.ActionType(action)] = count
	}
	return counts, rows.Err()
}
