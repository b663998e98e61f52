package store

import (
	"context"
	"database/sql"
)

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers      int `json:"total_users"`
	BannedUsers     int `json:"banned_users"`
	Moderators      int `json:"moderators"`
	Admins          int `json:"admins"`
	TotalFollows    int `json:"total_follows"`
	TotalLists      int `json:"total_lists"`
	TotalBans       int `json:"total_bans"`
	ActivityEntries int `json:"activity_entries"`
	PendingDeletes  int `json:"pending_deletes"`
}

// StatsRepository aggregates counts for the admin stats endpoint.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Summary(ctx context.Context) (Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(1) FROM users),
			(SELECT COUNT(1) FROM users WHERE is_banned),
			(SELECT COUNT(1) FROM users WHERE is_moderator),
			(SELECT COUNT(1) FROM users WHERE is_admin),
			(SELECT COUNT(1) FROM follows),
			(SELECT COUNT(1) FROM game_lists),
			(SELECT COUNT(1) FROM ban_history),
			(SELECT COUNT(1) FROM moderator_activity),
			(SELECT COUNT(1) FROM deletion_outbox WHERE completed_at IS NULL)`
	var stats Stats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalUsers,
		&stats.BannedUsers,
		&stats.Moderators,
		&stats.Admins,
		&stats.TotalFollows,
		&stats.TotalLists,
		&stats.TotalBans,
		&stats.ActivityEntries,
		&stats.PendingDeletes,
	)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}
