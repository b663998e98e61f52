package types

import "time"

// Game is a locally mirrored catalog entry. Rows are upserted whenever a
// catalog result is referenced by a list, so activity enrichment and list
// rendering never need a live catalog call.
type Game struct {
	ID       int       `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	CoverURL string    `json:"cover_url,omitempty" db:"cover_url"`
	CachedAt time.Time `json:"cached_at" db:"cached_at"`
}

// PlayStatus enumerates the progress states a list entry can hold.
type PlayStatus string

const (
	StatusBacklog   PlayStatus = "backlog"
	StatusPlaying   PlayStatus = "playing"
	StatusCompleted PlayStatus = "completed"
	StatusDropped   PlayStatus = "dropped"
)

// Valid reports whether the status is one of the known values.
func (s PlayStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusPlaying, StatusCompleted, StatusDropped:
		return true
	}
	return false
}

// GameList is a user-curated collection of games.
type GameList struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	IsPublic  bool      `json:"is_public" db:"is_public"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// GameListEntry is one game inside a list, with per-user progress data.
type GameListEntry struct {
	ListID  int        `json:"list_id" db:"list_id"`
	GameID  int        `json:"game_id" db:"game_id"`
	Status  PlayStatus `json:"status" db:"status"`
	Rating  *int       `json:"rating,omitempty" db:"rating"`
	Note    string     `json:"note,omitempty" db:"note"`
	AddedAt time.Time  `json:"added_at" db:"added_at"`

	// Game is populated on reads that join the mirror table.
	Game *Game `json:"game,omitempty"`
}
