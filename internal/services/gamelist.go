package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
)

// ErrNotOwner rejects writes to a list the caller does not own, and reads
// of private lists by anyone but the owner.
var ErrNotOwner = errors.New("list does not belong to this user")

// GameListRepository defines persistence operations for lists and entries.
type GameListRepository interface {
	Get(ctx context.Context, id int) (types.GameList, error)
	ListByUser(ctx context.Context, userID int, publicOnly bool) ([]types.GameList, error)
	Create(ctx context.Context, list types.GameList) (types.GameList, error)
	Update(ctx context.Context, list types.GameList) (types.GameList, error)
	Delete(ctx context.Context, id int) error
	UpsertEntry(ctx context.Context, entry types.GameListEntry) error
	DeleteEntry(ctx context.Context, listID, gameID int) error
	Entries(ctx context.Context, listID int) ([]types.GameListEntry, error)
}

// GameMirror maintains the local copy of catalog rows that lists reference.
type GameMirror interface {
	Get(ctx context.Context, id int) (types.Game, error)
	Upsert(ctx context.Context, game types.Game) error
}

// CatalogLookup resolves a game against the external catalog.
// Satisfied by *catalog.Client and its cached wrapper.
type CatalogLookup interface {
	GetGame(ctx context.Context, id int) (types.Game, error)
}

// GameListService encapsulates list curation use-cases.
type GameListService struct {
	repo    GameListRepository
	games   GameMirror
	catalog CatalogLookup
}

func NewGameListService(repo GameListRepository, games GameMirror, catalog CatalogLookup) *GameListService {
	return &GameListService{repo: repo, games: games, catalog: catalog}
}

func (s *GameListService) Create(ctx context.Context, userID int, name string, isPublic bool) (types.GameList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.GameList{}, fmt.Errorf("list name is required")
	}
	return s.repo.Create(ctx, types.GameList{
		UserID:   userID,
		Name:     name,
		IsPublic: isPublic,
	})
}

// Get returns a list if it is public or owned by the viewer. A viewer id
// of 0 means unauthenticated.
func (s *GameListService) Get(ctx context.Context, viewerID, listID int) (types.GameList, error) {
	list, err := s.repo.Get(ctx, listID)
	if err != nil {
		return types.GameList{}, err
	}
	if !list.IsPublic && list.UserID != viewerID {
		// private lists are invisible, not forbidden
		return types.GameList{}, store.ErrNotFound
	}
	return list, nil
}

// ListsForUser returns a user's lists; viewers other than the owner see
// only the public ones.
func (s *GameListService) ListsForUser(ctx context.Context, viewerID, ownerID int) ([]types.GameList, error) {
	return s.repo.ListByUser(ctx, ownerID, viewerID != ownerID)
}

func (s *GameListService) Update(ctx context.Context, userID, listID int, name string, isPublic bool) (types.GameList, error) {
	list, err := s.ownedList(ctx, userID, listID)
	if err != nil {
		return types.GameList{}, err
	}
	if name = strings.TrimSpace(name); name != "" {
		list.Name = name
	}
	list.IsPublic = isPublic
	return s.repo.Update(ctx, list)
}

func (s *GameListService) Delete(ctx context.Context, userID, listID int) error {
	if _, err := s.ownedList(ctx, userID, listID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, listID)
}

// AddEntry puts a game on a list, mirroring the catalog row locally the
// first time it is referenced.
func (s *GameListService) AddEntry(ctx context.Context, userID, listID int, entry types.GameListEntry) error {
	if _, err := s.ownedList(ctx, userID, listID); err != nil {
		return err
	}
	if entry.Status == "" {
		entry.Status = types.StatusBacklog
	}
	if !entry.Status.Valid() {
		return fmt.Errorf("unknown play status %q", entry.Status)
	}
	if entry.Rating != nil && (*entry.Rating < 1 || *entry.Rating > 10) {
		return fmt.Errorf("rating must be between 1 and 10")
	}

	if _, err := s.games.Get(ctx, entry.GameID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		game, err := s.catalog.GetGame(ctx, entry.GameID)
		if err != nil {
			return err
		}
		if err := s.games.Upsert(ctx, game); err != nil {
			return err
		}
	}

	entry.ListID = listID
	return s.repo.UpsertEntry(ctx, entry)
}

func (s *GameListService) RemoveEntry(ctx context.Context, userID, listID, gameID int) error {
	if _, err := s.ownedList(ctx, userID, listID); err != nil {
		return err
	}
	return s.repo.DeleteEntry(ctx, listID, gameID)
}

func (s *GameListService) Entries(ctx context.Context, viewerID, listID int) ([]types.GameListEntry, error) {
	if _, err := s.Get(ctx, viewerID, listID); err != nil {
		return nil, err
	}
	return s.repo.Entries(ctx, listID)
}

func (s *GameListService) ownedList(ctx context.Context, userID, listID int) (types.GameList, error) {
	list, err := s.repo.Get(ctx, listID)
	if err != nil {
		return types.GameList{}, err
	}
	if list.UserID != userID {
		return types.GameList{}, ErrNotOwner
	}
	return list, nil
}
