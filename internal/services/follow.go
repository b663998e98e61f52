package services

import (
	"context"
	"errors"

	"github.com/gameshelf/apiserver/types"
)

// ErrSelfFollow rejects follow edges pointing back at the follower.
var ErrSelfFollow = errors.New("cannot follow yourself")

// FollowRepository defines persistence operations for follow edges.
type FollowRepository interface {
	Create(ctx context.Context, followerID, followingID int) error
	Delete(ctx context.Context, followerID, followingID int) error
	Followers(ctx context.Context, userID, offset, limit int) ([]types.User, error)
	Following(ctx context.Context, userID, offset, limit int) ([]types.User, error)
}

// FollowService encapsulates the follow graph use-cases.
type FollowService struct {
	repo  FollowRepository
	users UserLookup
}

func NewFollowService(repo FollowRepository, users UserLookup) *FollowService {
	return &FollowService{repo: repo, users: users}
}

// Follow creates the edge follower -> following. Following an already
// followed user is a no-op.
func (s *FollowService) Follow(ctx context.Context, followerID, followingID int) error {
	if followerID == followingID {
		return ErrSelfFollow
	}
	if _, err := s.users.GetByID(ctx, followingID); err != nil {
		return err
	}
	return s.repo.Create(ctx, followerID, followingID)
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followingID int) error {
	return s.repo.Delete(ctx, followerID, followingID)
}

func (s *FollowService) Followers(ctx context.Context, userID, offset, limit int) ([]types.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Followers(ctx, userID, offset, clampLimit(limit))
}

func (s *FollowService) Following(ctx context.Context, userID, offset, limit int) ([]types.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Following(ctx, userID, offset, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
