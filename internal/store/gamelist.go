package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gameshelf/apiserver/types"
)

// GameListRepository handles persistence for lists and their entries.
type GameListRepository struct {
	db *sql.DB
}

func NewGameListRepository(db *sql.DB) *GameListRepository {
	return &GameListRepository{db: db}
}

func (r *GameListRepository) Get(ctx context.Context, id int) (types.GameList, error) {
	const query = `
		SELECT id, user_id, name, is_public, created_at, updated_at
		FROM game_lists
		WHERE id = $1`
	var list types.GameList
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&list.ID,
		&list.UserID,
		&list.Name,
		&list.IsPublic,
		&list.CreatedAt,
		&list.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.GameList{}, ErrNotFound
		}
		return types.GameList{}, err
	}
	return list, nil
}

func (r *GameListRepository) ListByUser(ctx context.Context, userID int, publicOnly bool) ([]types.GameList, error) {
	const query = `
		SELECT id, user_id, name, is_public, created_at, updated_at
		FROM game_lists
		WHERE user_id = $1 AND (NOT $2 OR is_public)
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, publicOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := make([]types.GameList, 0, 8)
	for rows.Next() {
		var list types.GameList
		if err := rows.Scan(
			&list.ID,
			&list.UserID,
			&list.Name,
			&list.IsPublic,
			&list.CreatedAt,
			&list.UpdatedAt,
		); err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, rows.Err()
}

func (r *GameListRepository) Create(ctx context.Context, list types.GameList) (types.GameList, error) {
	now := time.Now()
	list.CreatedAt = now
	list.UpdatedAt = now

	const query = `
		INSERT INTO game_lists (user_id, name, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		list.UserID,
		list.Name,
		list.IsPublic,
		list.CreatedAt,
		list.UpdatedAt,
	).Scan(&list.ID); err != nil {
		return types.GameList{}, err
	}
	return list, nil
}

func (r *GameListRepository) Update(ctx context.Context, list types.GameList) (types.GameList, error) {
	list.UpdatedAt = time.Now()

	const query = `
		UPDATE game_lists
		SET name = $1, is_public = $2, updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, list.Name, list.IsPublic, list.UpdatedAt, list.ID)
	if err != nil {
		return types.GameList{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.GameList{}, err
	}
	if affected == 0 {
		return types.GameList{}, ErrNotFound
	}
	return list, nil
}

func (r *GameListRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM game_lists WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

// UpsertEntry adds a game to a list or updates its progress fields.
func (r *GameListRepository) UpsertEntry(ctx context.Context, entry types.GameListEntry) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	const query = `
		INSERT INTO game_list_entries (list_id, game_id, status, rating, note, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (list_id, game_id)
		DO UPDATE SET status = EXCLUDED.status, rating = EXCLUDED.rating, note = EXCLUDED.note`
	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ListID,
		entry.GameID,
		string(entry.Status),
		entry.Rating,
		entry.Note,
		entry.AddedAt,
	)
	return err
}

func (r *GameListRepository) DeleteEntry(ctx context.Context, listID, gameID int) error {
	const query = `DELETE FROM game_list_entries WHERE list_id = $1 AND game_id = $2`
	result, err := r.db.ExecContext(ctx, query, listID, gameID)
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

// Entries returns a list's games joined with the mirror table.
func (r *GameListRepository) Entries(ctx context.Context, listID int) ([]types.GameListEntry, error) {
	const query = `
		SELECT e.list_id, e.game_id, e.status, e.rating, e.note, e.added_at,
			g.id, g.name, g.cover_url, g.cached_at
		FROM game_list_entries e
		JOIN games g ON g.id = e.game_id
		WHERE e.list_id = $1
		ORDER BY e.added_at DESC`
	rows, err := r.db.QueryContext(ctx, query, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.GameListEntry, 0, 16)
	for rows.Next() {
		var entry types.GameListEntry
		var status string
		var game types.Game
		if err := rows.Scan(
			&entry.ListID,
			&entry.GameID,
			&status,
			&entry.Rating,
			&entry.Note,
			&entry.AddedAt,
			&game.ID,
			&game.Name,
			&game.CoverURL,
			&game.CachedAt,
		); err != nil {
			return nil, err
		}
		entry.Status = types.PlayStatus(status)
		entry.Game = &game
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
