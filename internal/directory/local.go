package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// localUserStore is the slice of the user repository the local backing needs.
type localUserStore interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id int, displayName, avatarKey string) (types.User, error)
	List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error)
}

// LocalDirectory keeps credentials in the same Postgres database as the
// mirrored user rows.
type LocalDirectory struct {
	users localUserStore
}

// NewLocalDirectory builds the Postgres-backed directory.
func NewLocalDirectory(users localUserStore) *LocalDirectory {
	return &LocalDirectory{users: users}
}

func (d *LocalDirectory) LookupUser(ctx context.Context, id int) (types.User, error) {
	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return user, nil
}

func (d *LocalDirectory) CreateUser(ctx context.Context, username, displayName, password string) (types.User, error) {
	username = strings.TrimSpace(username)

	if _, err := d.users.GetByUsername(ctx, username); err == nil {
		return types.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := d.users.Create(ctx, types.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return types.User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return user, nil
}

func (d *LocalDirectory) VerifyCredentials(ctx context.Context, username, password string) (types.User, error) {
	user, err := d.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (d *LocalDirectory) UpdateUserMetadata(ctx context.Context, id int, patch MetadataPatch) error {
	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	displayName := user.DisplayName
	if patch.DisplayName != nil {
		displayName = *patch.DisplayName
	}
	avatarKey := user.AvatarKey
	if patch.AvatarKey != nil {
		avatarKey = *patch.AvatarKey
	}

	if _, err := d.users.UpdateProfile(ctx, id, displayName, avatarKey); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteUser is a no-op for the local backing: the mirrored row IS the
// directory record, and the moderation transaction already removed it.
// It stays idempotent so the reconciler can drain outbox rows uniformly.
func (d *LocalDirectory) DeleteUser(ctx context.Context, id int) error {
	_, err := d.users.GetByID(ctx, id)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (d *LocalDirectory) ListUsers(ctx context.Context, offset, limit int) ([]types.User, error) {
	users, _, err := d.users.List(ctx, "", offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return users, nil
}
