package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gameshelf/apiserver/types"
)

const userColumns = `id, username, display_name, avatar_key, password_hash,
		is_moderator, is_admin, is_banned, banned_at, banned_by, ban_reason,
		created_at, updated_at`

// UserRepository handles persistence for mirrored user rows.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.AvatarKey,
		&user.PasswordHash,
		&user.IsModerator,
		&user.IsAdmin,
		&user.IsBanned,
		&user.BannedAt,
		&user.BannedBy,
		&user.BanReason,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE lower(username) = lower($1)`, userColumns)
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (username, display_name, avatar_key, password_hash,
			is_moderator, is_admin, is_banned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.DisplayName,
		user.AvatarKey,
		user.PasswordHash,
		user.IsModerator,
		user.IsAdmin,
		user.IsBanned,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// UpdateProfile mutates the user-editable fields only. Role and ban state
// change exclusively through the moderation repository.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int, displayName, avatarKey string) (types.User, error) {
	query := fmt.Sprintf(`
		UPDATE users
		SET display_name = $1,
			avatar_key = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING %s`, userColumns)
	return scanUser(r.db.QueryRowContext(ctx, query, displayName, avatarKey, time.Now(), id))
}

// List returns a page of users, optionally filtered by a case-insensitive
// username substring, together with the total match count.
func (r *UserRepository) List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	pattern := "%" + search + "%"

	const countQuery = `SELECT COUNT(1) FROM users WHERE username ILIKE $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE username ILIKE $1
		ORDER BY id
		OFFSET $2 LIMIT $3`, userColumns)
	rows, err := r.db.QueryContext(ctx, listQuery, pattern, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// SetPasswordHash updates the stored credential for the local directory backing.
func (r *UserRepository) SetPasswordHash(ctx context.Context, id int, hash string) error {
	const query = `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, hash, time.Now(), id)
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
