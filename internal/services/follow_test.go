package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
)

type fakeFollowRepo struct {
	edges map[[2]int]bool
}

func (f *fakeFollowRepo) Create(ctx context.Context, followerID, followingID int) error {
	f.edges[[2]int{followerID, followingID}] = true
	return nil
}

func (f *fakeFollowRepo) Delete(ctx context.Context, followerID, followingID int) error {
	delete(f.edges, [2]int{followerID, followingID})
	return nil
}

func (f *fakeFollowRepo) Followers(ctx context.Context, userID, offset, limit int) ([]types.User, error) {
	var out []types.User
	for edge := range f.edges {
		if edge[1] == userID {
			out = append(out, types.User{ID: edge[0]})
		}
	}
	return out, nil
}

func (f *fakeFollowRepo) Following(ctx context.Context, userID, offset, limit int) ([]types.User, error) {
	var out []types.User
	for edge := range f.edges {
		if edge[0] == userID {
			out = append(out, types.User{ID: edge[1]})
		}
	}
	return out, nil
}

func TestFollowRejectsSelf(t *testing.T) {
	svc := NewFollowService(&fakeFollowRepo{edges: map[[2]int]bool{}}, fixtureUsers())

	if err := svc.Follow(context.Background(), plainID, plainID); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
}

func TestFollowUnknownTarget(t *testing.T) {
	svc := NewFollowService(&fakeFollowRepo{edges: map[[2]int]bool{}}, fixtureUsers())

	if err := svc.Follow(context.Background(), plainID, missingID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFollowRoundTrip(t *testing.T) {
	repo := &fakeFollowRepo{edges: map[[2]int]bool{}}
	svc := NewFollowService(repo, fixtureUsers())

	if err := svc.Follow(context.Background(), plainID, modID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	followers, err := svc.Followers(context.Background(), modID, 0, 20)
	if err != nil {
		t.Fatalf("followers: %v", err)
	}
	if len(followers) != 1 || followers[0].ID != plainID {
		t.Fatalf("unexpected followers %+v", followers)
	}

	if err := svc.Unfollow(context.Background(), plainID, modID); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	followers, _ = svc.Followers(context.Background(), modID, 0, 20)
	if len(followers) != 0 {
		t.Fatalf("edge should be gone, got %+v", followers)
	}
}
