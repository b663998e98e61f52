package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
)

type memoryUserStore struct {
	users  map[int]types.User
	nextID int
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[int]types.User), nextID: 1}
}

func (m *memoryUserStore) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUserStore) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range m.users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUserStore) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserStore) UpdateProfile(ctx context.Context, id int, displayName, avatarKey string) (types.User, error) {
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.DisplayName = displayName
	user.AvatarKey = avatarKey
	m.users[id] = user
	return user, nil
}

func (m *memoryUserStore) List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error) {
	var out []types.User
	for _, user := range m.users {
		out = append(out, user)
	}
	return out, len(out), nil
}

func TestLocalDirectoryRegisterAndVerify(t *testing.T) {
	dir := NewLocalDirectory(newMemoryUserStore())
	ctx := context.Background()

	user, err := dir.CreateUser(ctx, "player", "Player One", "hunter22!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	verified, err := dir.VerifyCredentials(ctx, "player", "hunter22!")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.ID != user.ID {
		t.Fatalf("verified wrong user %d", verified.ID)
	}

	if _, err := dir.VerifyCredentials(ctx, "player", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := dir.VerifyCredentials(ctx, "nobody", "hunter22!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user must look like bad credentials, got %v", err)
	}
}

func TestLocalDirectoryRejectsDuplicateUsername(t *testing.T) {
	dir := NewLocalDirectory(newMemoryUserStore())
	ctx := context.Background()

	if _, err := dir.CreateUser(ctx, "player", "Player", "pass1234"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := dir.CreateUser(ctx, "Player", "Other", "pass1234"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken for case-insensitive duplicate, got %v", err)
	}
}

func TestLocalDirectoryMetadataPatch(t *testing.T) {
	users := newMemoryUserStore()
	dir := NewLocalDirectory(users)
	ctx := context.Background()

	user, err := dir.CreateUser(ctx, "player", "Player", "pass1234")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Speedrunner"
	if err := dir.UpdateUserMetadata(ctx, user.ID, MetadataPatch{DisplayName: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ := users.GetByID(ctx, user.ID)
	if updated.DisplayName != "Speedrunner" {
		t.Fatalf("display name not applied: %q", updated.DisplayName)
	}

	key := "avatars/1/abc.png"
	if err := dir.UpdateUserMetadata(ctx, user.ID, MetadataPatch{AvatarKey: &key}); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ = users.GetByID(ctx, user.ID)
	if updated.DisplayName != "Speedrunner" || updated.AvatarKey != key {
		t.Fatalf("partial patch clobbered fields: %+v", updated)
	}
}

func TestLocalDirectoryDeleteIsIdempotent(t *testing.T) {
	dir := NewLocalDirectory(newMemoryUserStore())

	if err := dir.DeleteUser(context.Background(), 42); err != nil {
		t.Fatalf("deleting a missing record must succeed, got %v", err)
	}
}
