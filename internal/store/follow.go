package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gameshelf/apiserver/types"
	"github.com/lib/pq"
)

// FollowRepository handles persistence for follow edges.
type FollowRepository struct {
	db *sql.DB
}

func NewFollowRepository(db *sql.DB) *FollowRepository {
	return &FollowRepository{db: db}
}

// Create inserts a follow edge. Re-following is a no-op rather than an error.
func (r *FollowRepository) Create(ctx context.Context, followerID, followingID int) error {
	const query = `
		INSERT INTO follows (follower_id, following_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, following_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, followerID, followingID)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
		// check constraint: no self-loops
		return fmt.Errorf("self follow: %w", ErrConflict)
	}
	return err
}

func (r *FollowRepository) Delete(ctx context.Context, followerID, followingID int) error {
	const query = `DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`
	result, err := r.db.ExecContext(ctx, query, followerID, followingID)
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

// Followers returns the users following the given user.
func (r *FollowRepository) Followers(ctx context.Context, userID, offset, limit int) ([]types.User, error) {
	const query = `
		SELECT u.id, u.username, u.display_name, u.avatar_key, u.password_hash,
			u.is_moderator, u.is_admin, u.is_banned, u.banned_at, u.banned_by, u.ban_reason,
			u.created_at, u.updated_at
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.following_id = $1
		ORDER BY f.created_at DESC
		OFFSET $2 LIMIT $3`
	return r.queryUsers(ctx, query, userID, offset, limit)
}

// Following returns the users the given user follows.
func (r *FollowRepository) Following(ctx context.Context, userID, offset, limit int) ([]types.User, error) {
	const query = `
		SELECT u.id, u.username, u.display_name, u.avatar_key, u.password_hash,
			u.is_moderator, u.is_admin, u.is_banned, u.banned_at, u.banned_by, u.ban_reason,
			u.created_at, u.updated_at
		FROM follows f
		JOIN users u ON u.id = f.following_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC
		OFFSET $2 LIMIT $3`
	return r.queryUsers(ctx, query, userID, offset, limit)
}

func (r *FollowRepository) queryUsers(ctx context.Context, query string, userID, offset, limit int) ([]types.User, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
