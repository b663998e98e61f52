package types

import "time"

// ActionType enumerates the auditable moderation actions.
type ActionType string

const (
	ActionBanUser          ActionType = "ban_user"
	ActionUnbanUser        ActionType = "unban_user"
	ActionPromoteModerator ActionType = "promote_moderator"
	ActionDemoteModerator  ActionType = "demote_moderator"
	ActionDeleteUser       ActionType = "delete_user"
	ActionAddGame          ActionType = "add_game"
	ActionRemoveGame       ActionType = "remove_game"
)

// Valid reports whether the action type is one of the known values.
func (a ActionType) Valid() bool {
	switch a {
	case ActionBanUser, ActionUnbanUser, ActionPromoteModerator,
		ActionDemoteModerator, ActionDeleteUser, ActionAddGame, ActionRemoveGame:
		return true
	}
	return false
}

// TargetKind discriminates what an activity entry points at.
type TargetKind string

const (
	TargetUser TargetKind = "user"
	TargetGame TargetKind = "game"
)

// TargetRef is a tagged reference to the entity a moderation action touched.
// The kind decides which table the id resolves against at read time.
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   int        `json:"id"`
}

// UserTarget builds a TargetRef pointing at a user row.
func UserTarget(id int) TargetRef { return TargetRef{Kind: TargetUser, ID: id} }

// GameTarget builds a TargetRef pointing at a games-mirror row.
func GameTarget(id int) TargetRef { return TargetRef{Kind: TargetGame, ID: id} }

// BanRecord is one ban event in a user's history. A record with no
// UnbannedAt is open and represents the active ban; at most one open
// record exists per user.
type BanRecord struct {
	ID         int        `json:"id" db:"id"`
	UserID     int        `json:"user_id" db:"user_id"`
	BannedBy   int        `json:"banned_by" db:"banned_by"`
	BanReason  *string    `json:"ban_reason,omitempty" db:"ban_reason"`
	BannedAt   time.Time  `json:"banned_at" db:"banned_at"`
	UnbannedAt *time.Time `json:"unbanned_at,omitempty" db:"unbanned_at"`
	UnbannedBy *int       `json:"unbanned_by,omitempty" db:"unbanned_by"`
}

// Open reports whether the record describes an active ban.
func (b BanRecord) Open() bool { return b.UnbannedAt == nil }

// ActivityEntry is one row of the append-only moderator audit log.
type ActivityEntry struct {
	ID          int        `json:"id" db:"id"`
	ModeratorID int        `json:"moderator_id" db:"moderator_id"`
	Action      ActionType `json:"action_type" db:"action_type"`
	Target      TargetRef  `json:"target"`
	Details     string     `json:"details" db:"details"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// EnrichedActivityEntry is an audit row joined with the current display
// names of its actor and target. Enrichment is best-effort: a deleted
// actor or target leaves the corresponding field nil.
type EnrichedActivityEntry struct {
	ActivityEntry
	ModeratorUsername *string `json:"moderator_username"`
	TargetUsername    *string `json:"target_username,omitempty"`
	TargetGameName    *string `json:"target_game_name,omitempty"`
}
