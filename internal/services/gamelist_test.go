package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
)

type fakeListRepo struct {
	lists   map[int]types.GameList
	entries map[int][]types.GameListEntry
	nextID  int
}

func newFakeListRepo() *fakeListRepo {
	return &fakeListRepo{
		lists:   make(map[int]types.GameList),
		entries: make(map[int][]types.GameListEntry),
		nextID:  1,
	}
}

func (f *fakeListRepo) Get(ctx context.Context, id int) (types.GameList, error) {
	list, ok := f.lists[id]
	if !ok {
		return types.GameList{}, store.ErrNotFound
	}
	return list, nil
}

func (f *fakeListRepo) ListByUser(ctx context.Context, userID int, publicOnly bool) ([]types.GameList, error) {
	var out []types.GameList
	for _, list := range f.lists {
		if list.UserID != userID {
			continue
		}
		if publicOnly && !list.IsPublic {
			continue
		}
		out = append(out, list)
	}
	return out, nil
}

func (f *fakeListRepo) Create(ctx context.Context, list types.GameList) (types.GameList, error) {
	list.ID = f.nextID
	f.nextID++
	f.lists[list.ID] = list
	return list, nil
}

func (f *fakeListRepo) Update(ctx context.Context, list types.GameList) (types.GameList, error) {
	f.lists[list.ID] = list
	return list, nil
}

func (f *fakeListRepo) Delete(ctx context.Context, id int) error {
	delete(f.lists, id)
	delete(f.entries, id)
	return nil
}

func (f *fakeListRepo) UpsertEntry(ctx context.Context, entry types.GameListEntry) error {
	for i, existing := range f.entries[entry.ListID] {
		if existing.GameID == entry.GameID {
			f.entries[entry.ListID][i] = entry
			return nil
		}
	}
	f.entries[entry.ListID] = append(f.entries[entry.ListID], entry)
	return nil
}

func (f *fakeListRepo) DeleteEntry(ctx context.Context, listID, gameID int) error {
	entries := f.entries[listID]
	for i, entry := range entries {
		if entry.GameID == gameID {
			f.entries[listID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeListRepo) Entries(ctx context.Context, listID int) ([]types.GameListEntry, error) {
	return f.entries[listID], nil
}

type fakeGameMirror struct {
	games    map[int]types.Game
	upserted []int
}

func (f *fakeGameMirror) Get(ctx context.Context, id int) (types.Game, error) {
	game, ok := f.games[id]
	if !ok {
		return types.Game{}, store.ErrNotFound
	}
	return game, nil
}

func (f *fakeGameMirror) Upsert(ctx context.Context, game types.Game) error {
	f.games[game.ID] = game
	f.upserted = append(f.upserted, game.ID)
	return nil
}

type fakeCatalog struct {
	games map[int]types.Game
	calls int
}

func (f *fakeCatalog) GetGame(ctx context.Context, id int) (types.Game, error) {
	f.calls++
	game, ok := f.games[id]
	if !ok {
		return types.Game{}, errors.New("catalog: game not found")
	}
	return game, nil
}

func newListFixture() (*GameListService, *fakeListRepo, *fakeGameMirror, *fakeCatalog) {
	repo := newFakeListRepo()
	mirror := &fakeGameMirror{games: make(map[int]types.Game)}
	cat := &fakeCatalog{games: map[int]types.Game{
		42: {ID: 42, Name: "Outer Wilds"},
	}}
	return NewGameListService(repo, mirror, cat), repo, mirror, cat
}

func TestPrivateListInvisibleToOthers(t *testing.T) {
	svc, repo, _, _ := newListFixture()
	repo.lists[1] = types.GameList{ID: 1, UserID: 10, Name: "secret backlog"}

	if _, err := svc.Get(context.Background(), 10, 1); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.Get(context.Background(), 11, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner, got %v", err)
	}
	if _, err := svc.Get(context.Background(), 0, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for anonymous, got %v", err)
	}
}

func TestListsForUserFiltersPrivate(t *testing.T) {
	svc, repo, _, _ := newListFixture()
	repo.lists[1] = types.GameList{ID: 1, UserID: 10, Name: "public", IsPublic: true}
	repo.lists[2] = types.GameList{ID: 2, UserID: 10, Name: "private"}

	own, err := svc.ListsForUser(context.Background(), 10, 10)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("owner should see both lists, got %d", len(own))
	}

	others, err := svc.ListsForUser(context.Background(), 11, 10)
	if err != nil {
		t.Fatalf("viewer list: %v", err)
	}
	if len(others) != 1 || others[0].Name != "public" {
		t.Fatalf("viewer should see only the public list, got %+v", others)
	}
}

func TestUpdateRejectsNonOwner(t *testing.T) {
	svc, repo, _, _ := newListFixture()
	repo.lists[1] = types.GameList{ID: 1, UserID: 10, Name: "backlog", IsPublic: true}

	if _, err := svc.Update(context.Background(), 11, 1, "stolen", false); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestAddEntryMirrorsOnFirstReference(t *testing.T) {
	svc, repo, mirror, cat := newListFixture()
	repo.lists[1] = types.GameList{ID: 1, UserID: 10, Name: "backlog"}

	entry := types.GameListEntry{GameID: 42, Status: types.StatusPlaying}
	if err := svc.AddEntry(context.Background(), 10, 1, entry); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if len(mirror.upserted) != 1 || mirror.upserted[0] != 42 {
		t.Fatalf("expected mirror upsert of 42, got %v", mirror.upserted)
	}

	// second reference resolves locally
	if err := svc.AddEntry(context.Background(), 10, 1, entry); err != nil {
		t.Fatalf("re-add entry: %v", err)
	}
	if cat.calls != 1 {
		t.Fatalf("expected one catalog call, got %d", cat.calls)
	}
}

func TestAddEntryValidation(t *testing.T) {
	svc, repo, _, _ := newListFixture()
	repo.lists[1] = types.GameList{ID: 1, UserID: 10, Name: "backlog"}

	bad := types.GameListEntry{GameID: 42, Status: "speedrunning"}
	if err := svc.AddEntry(context.Background(), 10, 1, bad); err == nil {
		t.Fatalf("expected rejection of unknown status")
	}

	rating := 11
	bad = types.GameListEntry{GameID: 42, Rating: &rating}
	if err := svc.AddEntry(context.Background(), 10, 1, bad); err == nil {
		t.Fatalf("expected rejection of out-of-range rating")
	}
}

func TestEntriesRespectVisibility(t *testing.T) {
	svc, repo, _, _ := newListFixture()
	repo.lists[1] = types.GameList{ID: 1, UserID: 10, Name: "secret"}
	repo.entries[1] = []types.GameListEntry{{ListID: 1, GameID: 42, Status: types.StatusBacklog}}

	if _, err := svc.Entries(context.Background(), 11, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner, got %v", err)
	}
	entries, err := svc.Entries(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("owner entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}
