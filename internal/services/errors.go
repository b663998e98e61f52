package services

import "errors"

// Business-rule sentinels for the moderation workflow. Handlers translate
// these into stable HTTP statuses; everything else surfaces as an internal
// error.
var (
	// ErrSelfAction rejects moderation aimed at the acting user.
	ErrSelfAction = errors.New("cannot perform this action on yourself")

	// ErrInsufficientPrivilege rejects actions that do not respect the
	// role precedence admin > moderator > user.
	ErrInsufficientPrivilege = errors.New("insufficient privilege for target")

	// State conflicts: the target is already in the requested condition.
	ErrAlreadyBanned    = errors.New("user is already banned")
	ErrNotBanned        = errors.New("user is not banned")
	ErrAlreadyModerator = errors.New("user is already a moderator")
	ErrNotModerator     = errors.New("user is not a moderator")

	// ErrDirectoryDelete signals that the local rows were removed but the
	// identity-provider deletion failed; the reconciler keeps retrying.
	ErrDirectoryDelete = errors.New("identity provider deletion failed")

	// ErrInvalidFilter rejects malformed activity-log queries. Handlers
	// report it as a client error; store failures stay internal.
	ErrInvalidFilter = errors.New("invalid activity filter")
)
