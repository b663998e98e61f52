package types

import "time"

// User represents an account in the system.
// It mirrors the directory record and carries role and ban state.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	// Uniqueness is case-insensitive.
	Username string `json:"username" db:"username"`

	// DisplayName is the name shown on profiles and activity views.
	DisplayName string `json:"display_name" db:"display_name"`

	// AvatarKey references the user's avatar object in blob storage.
	// Empty when no avatar has been uploaded.
	AvatarKey string `json:"avatar_key,omitempty" db:"avatar_key"`

	// PasswordHash stores the hashed credential when the local directory
	// backing is in use. Never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsModerator grants access to the moderation surface.
	IsModerator bool `json:"is_moderator" db:"is_moderator"`

	// IsAdmin grants the full admin surface. Admin status is assigned
	// out-of-band (seeding or direct SQL), never through the API.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// IsBanned blocks the user from the authenticated social surface.
	IsBanned bool `json:"is_banned" db:"is_banned"`

	// Ban metadata, set while IsBanned is true.
	BannedAt  *time.Time `json:"banned_at,omitempty" db:"banned_at"`
	BannedBy  *int       `json:"banned_by,omitempty" db:"banned_by"`
	BanReason *string    `json:"ban_reason,omitempty" db:"ban_reason"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Rank returns the user's place in the role precedence order
// admin > moderator > plain user. Moderation actions require the
// actor to strictly outrank the target.
func (u User) Rank() int {
	switch {
	case u.IsAdmin:
		return 2
	case u.IsModerator:
		return 1
	default:
		return 0
	}
}

// Follow is a directed edge between two users.
type Follow struct {
	FollowerID  int       `json:"follower_id" db:"follower_id"`
	FollowingID int       `json:"following_id" db:"following_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
