// Package directory abstracts the identity provider holding credentials.
//
// Two backings exist: a local one that keeps credentials in Postgres next
// to the mirrored user rows, and a remote one that talks to a hosted
// provider over HTTP. Deployments pick one at startup; call sites never
// branch on the backing.
package directory

import (
	"context"
	"errors"

	"github.com/gameshelf/apiserver/types"
)

var (
	// ErrNotFound means the directory has no record for the given id.
	ErrNotFound = errors.New("directory: record not found")

	// ErrInvalidCredentials means the username/password pair did not verify.
	ErrInvalidCredentials = errors.New("directory: invalid credentials")

	// ErrUsernameTaken means a registration collided with an existing name.
	ErrUsernameTaken = errors.New("directory: username taken")

	// ErrUnavailable means the provider call itself failed; the record's
	// state is unknown and the operation may be retried.
	ErrUnavailable = errors.New("directory: provider unavailable")
)

// MetadataPatch carries the mutable directory fields. Nil means unchanged.
type MetadataPatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarKey   *string `json:"avatar_key,omitempty"`
}

// UserDirectory is the identity-provider surface the rest of the app sees.
type UserDirectory interface {
	// LookupUser resolves a directory record by the mirrored user id.
	LookupUser(ctx context.Context, id int) (types.User, error)

	// CreateUser registers a new record and returns the mirrored user row.
	CreateUser(ctx context.Context, username, displayName, password string) (types.User, error)

	// VerifyCredentials checks a username/password pair.
	VerifyCredentials(ctx context.Context, username, password string) (types.User, error)

	// UpdateUserMetadata applies a partial metadata update.
	UpdateUserMetadata(ctx context.Context, id int, patch MetadataPatch) error

	// DeleteUser removes the directory record. Idempotent: deleting a
	// missing record succeeds, so the reconciler can re-issue safely.
	DeleteUser(ctx context.Context, id int) error

	// ListUsers enumerates records page by page for search/listing.
	ListUsers(ctx context.Context, offset, limit int) ([]types.User, error)
}
