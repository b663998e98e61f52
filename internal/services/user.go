package services

import (
	"context"

	"github.com/gameshelf/apiserver/internal/directory"
	"github.com/gameshelf/apiserver/types"
)

// UserRepository defines persistence operations for mirrored users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error)
	UpdateProfile(ctx context.Context, id int, displayName, avatarKey string) (types.User, error)
}

// UserService encapsulates profile use-cases. Profile edits flow through
// the directory so the provider record and the mirror stay aligned.
type UserService struct {
	repo UserRepository
	dir  directory.UserDirectory
}

func NewUserService(repo UserRepository, dir directory.UserDirectory) *UserService {
	return &UserService{repo: repo, dir: dir}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, search, offset, limit)
}

// UpdateProfile changes the user-editable fields through the directory and
// returns the refreshed mirror row.
func (s *UserService) UpdateProfile(ctx context.Context, id int, patch directory.MetadataPatch) (types.User, error) {
	if err := s.dir.UpdateUserMetadata(ctx, id, patch); err != nil {
		return types.User{}, err
	}
	return s.repo.GetByID(ctx, id)
}
