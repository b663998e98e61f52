package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gameshelf/apiserver/types"
)

// GameRepository maintains the local mirror of catalog entries.
type GameRepository struct {
	db *sql.DB
}

func NewGameRepository(db *sql.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) Get(ctx context.Context, id int) (types.Game, error) {
	const query = `SELECT id, name, cover_url, cached_at FROM games WHERE id = $1`
	var game types.Game
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&game.ID,
		&game.Name,
		&game.CoverURL,
		&game.CachedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Game{}, ErrNotFound
		}
		return types.Game{}, err
	}
	return game, nil
}

// Upsert refreshes the mirror row for a catalog entry.
func (r *GameRepository) Upsert(ctx context.Context, game types.Game) error {
	if game.CachedAt.IsZero() {
		game.CachedAt = time.Now()
	}
	const query = `
		INSERT INTO games (id, name, cover_url, cached_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, cover_url = EXCLUDED.cover_url, cached_at = EXCLUDED.cached_at`
	_, err := r.db.ExecContext(ctx, query, game.ID, game.Name, game.CoverURL, game.CachedAt)
	return err
}

// Delete removes a mirror row. Fails while list entries still reference it.
func (r *GameRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM games WHERE id = $1`
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
