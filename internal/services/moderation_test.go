package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gameshelf/apiserver/internal/directory"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"github.com/google/uuid"
)

type fakeUsers struct {
	users map[int]types.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

type applyCall struct {
	name     string
	targetID int
	actorID  int
	details  string
}

type fakeModStore struct {
	calls   []applyCall
	err     error
	history []types.BanRecord
	open    *types.BanRecord
}

func (f *fakeModStore) record(name string, targetID, actorID int, details string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, applyCall{name: name, targetID: targetID, actorID: actorID, details: details})
	return nil
}

func (f *fakeModStore) ApplyBan(ctx context.Context, targetID, actorID int, reason *string, details string) error {
	return f.record("ban", targetID, actorID, details)
}

func (f *fakeModStore) ApplyUnban(ctx context.Context, targetID, actorID int, details string) error {
	return f.record("unban", targetID, actorID, details)
}

func (f *fakeModStore) ApplyPromote(ctx context.Context, targetID, actorID int, details string) error {
	return f.record("promote", targetID, actorID, details)
}

func (f *fakeModStore) ApplyDemote(ctx context.Context, targetID, actorID int, details string) error {
	return f.record("demote", targetID, actorID, details)
}

func (f *fakeModStore) ApplyDelete(ctx context.Context, targetID, actorID int, targetUsername, details string, outboxID uuid.UUID) error {
	return f.record("delete", targetID, actorID, details)
}

func (f *fakeModStore) OpenBan(ctx context.Context, userID int) (types.BanRecord, error) {
	if f.open == nil || f.open.UserID != userID {
		return types.BanRecord{}, store.ErrNotFound
	}
	return *f.open, nil
}

func (f *fakeModStore) BanHistory(ctx context.Context, userID int) ([]types.BanRecord, error) {
	var records []types.BanRecord
	for _, record := range f.history {
		if record.UserID == userID {
			records = append(records, record)
		}
	}
	return records, nil
}

type fakeOutbox struct {
	completed []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeOutbox) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeOutbox) RecordFailure(ctx context.Context, id uuid.UUID, reason string) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDirectory struct {
	deleteErr error
	deleted   []int
}

func (f *fakeDirectory) LookupUser(ctx context.Context, id int) (types.User, error) {
	return types.User{}, nil
}

func (f *fakeDirectory) CreateUser(ctx context.Context, username, displayName, password string) (types.User, error) {
	return types.User{}, nil
}

func (f *fakeDirectory) VerifyCredentials(ctx context.Context, username, password string) (types.User, error) {
	return types.User{}, nil
}

func (f *fakeDirectory) UpdateUserMetadata(ctx context.Context, id int, patch directory.MetadataPatch) error {
	return nil
}

func (f *fakeDirectory) DeleteUser(ctx context.Context, id int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDirectory) ListUsers(ctx context.Context, offset, limit int) ([]types.User, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	adminID     = 1
	modID       = 2
	otherModID  = 3
	plainID     = 4
	bannedID    = 5
	missingID   = 99
	secondAdmin = 6
)

func fixtureUsers() *fakeUsers {
	return &fakeUsers{users: map[int]types.User{
		adminID:     {ID: adminID, Username: "root", IsAdmin: true},
		modID:       {ID: modID, Username: "mod_one", IsModerator: true},
		otherModID:  {ID: otherModID, Username: "mod_two", IsModerator: true},
		plainID:     {ID: plainID, Username: "player"},
		bannedID:    {ID: bannedID, Username: "grief", IsBanned: true},
		secondAdmin: {ID: secondAdmin, Username: "root_two", IsAdmin: true},
	}}
}

func newTestService(users *fakeUsers, repo *fakeModStore, outbox *fakeOutbox, dir *fakeDirectory) *ModerationService {
	return NewModerationService(users, repo, outbox, dir, nil, nil, testLogger())
}

func TestBanWritesSingleCoupledAction(t *testing.T) {
	repo := &fakeModStore{}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	reason := "spamming lists"
	if err := svc.Ban(context.Background(), modID, plainID, &reason); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if len(repo.calls) != 1 {
		t.Fatalf("expected exactly one store call, got %d", len(repo.calls))
	}
	call := repo.calls[0]
	if call.name != "ban" || call.targetID != plainID || call.actorID != modID {
		t.Fatalf("unexpected call %+v", call)
	}
	if call.details != "spamming lists" {
		t.Fatalf("unexpected details %q", call.details)
	}
}

func TestBanDefaultsMissingReason(t *testing.T) {
	repo := &fakeModStore{}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Ban(context.Background(), adminID, plainID, nil); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if repo.calls[0].details != "no reason provided" {
		t.Fatalf("unexpected details %q", repo.calls[0].details)
	}
}

func TestBanRejectsSelf(t *testing.T) {
	repo := &fakeModStore{}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Ban(context.Background(), modID, modID, nil); !errors.Is(err, ErrSelfAction) {
		t.Fatalf("expected ErrSelfAction, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("rejected action must not touch the store")
	}
}

func TestBanUnknownTarget(t *testing.T) {
	svc := newTestService(fixtureUsers(), &fakeModStore{}, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Ban(context.Background(), adminID, missingID, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBanRequiresStrictlyHigherRank(t *testing.T) {
	cases := []struct {
		name    string
		actorID int
		target  int
	}{
		{"moderator vs moderator", modID, otherModID},
		{"moderator vs admin", modID, adminID},
		{"admin vs admin", adminID, secondAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeModStore{}
			svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

			if err := svc.Ban(context.Background(), tc.actorID, tc.target, nil); !errors.Is(err, ErrInsufficientPrivilege) {
				t.Fatalf("expected ErrInsufficientPrivilege, got %v", err)
			}
			if len(repo.calls) != 0 {
				t.Fatalf("rejected action must not touch the store")
			}
		})
	}
}

func TestBanAlreadyBanned(t *testing.T) {
	repo := &fakeModStore{}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Ban(context.Background(), adminID, bannedID, nil); !errors.Is(err, ErrAlreadyBanned) {
		t.Fatalf("expected ErrAlreadyBanned, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("rejected action must not touch the store")
	}
}

func TestBanMapsConcurrentConflict(t *testing.T) {
	repo := &fakeModStore{err: store.ErrConflict}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Ban(context.Background(), adminID, plainID, nil); !errors.Is(err, ErrAlreadyBanned) {
		t.Fatalf("expected ErrAlreadyBanned from conflict, got %v", err)
	}
}

func TestUnbanRoundTrip(t *testing.T) {
	repo := &fakeModStore{}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Unban(context.Background(), modID, bannedID); err != nil {
		t.Fatalf("unban: %v", err)
	}
	if len(repo.calls) != 1 || repo.calls[0].name != "unban" {
		t.Fatalf("unexpected calls %+v", repo.calls)
	}
}

func TestUnbanNotBanned(t *testing.T) {
	svc := newTestService(fixtureUsers(), &fakeModStore{}, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Unban(context.Background(), modID, plainID); !errors.Is(err, ErrNotBanned) {
		t.Fatalf("expected ErrNotBanned, got %v", err)
	}
}

func TestPromoteAlreadyModerator(t *testing.T) {
	svc := newTestService(fixtureUsers(), &fakeModStore{}, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Promote(context.Background(), adminID, modID); !errors.Is(err, ErrAlreadyModerator) {
		t.Fatalf("expected ErrAlreadyModerator, got %v", err)
	}
}

func TestPromoteThenDemote(t *testing.T) {
	repo := &fakeModStore{}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Promote(context.Background(), adminID, plainID); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := svc.Demote(context.Background(), adminID, modID); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if len(repo.calls) != 2 {
		t.Fatalf("expected two store calls, got %d", len(repo.calls))
	}
}

func TestDemoteProtectsAdmins(t *testing.T) {
	repo := &fakeModStore{}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Demote(context.Background(), adminID, secondAdmin); !errors.Is(err, ErrInsufficientPrivilege) {
		t.Fatalf("expected ErrInsufficientPrivilege, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("rejected action must not touch the store")
	}
}

func TestDemoteNotModerator(t *testing.T) {
	svc := newTestService(fixtureUsers(), &fakeModStore{}, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Demote(context.Background(), adminID, plainID); !errors.Is(err, ErrNotModerator) {
		t.Fatalf("expected ErrNotModerator, got %v", err)
	}
}

func TestDeleteProtectsAdmins(t *testing.T) {
	repo := &fakeModStore{}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	if err := svc.Delete(context.Background(), adminID, secondAdmin); !errors.Is(err, ErrInsufficientPrivilege) {
		t.Fatalf("expected ErrInsufficientPrivilege, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("rejected action must not touch the store")
	}
}

func TestDeleteConfirmsDirectory(t *testing.T) {
	repo := &fakeModStore{}
	outbox := &fakeOutbox{}
	dir := &fakeDirectory{}
	svc := newTestService(fixtureUsers(), repo, outbox, dir)

	if err := svc.Delete(context.Background(), adminID, plainID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(dir.deleted) != 1 || dir.deleted[0] != plainID {
		t.Fatalf("expected directory delete of %d, got %v", plainID, dir.deleted)
	}
	if len(outbox.completed) != 1 {
		t.Fatalf("expected outbox task closed, got %d", len(outbox.completed))
	}
	if len(outbox.failed) != 0 {
		t.Fatalf("unexpected failures %v", outbox.failed)
	}
}

func TestDeleteSurfacesDirectoryDivergence(t *testing.T) {
	repo := &fakeModStore{}
	outbox := &fakeOutbox{}
	dir := &fakeDirectory{deleteErr: errors.New("provider down")}
	svc := newTestService(fixtureUsers(), repo, outbox, dir)

	err := svc.Delete(context.Background(), adminID, plainID)
	if !errors.Is(err, ErrDirectoryDelete) {
		t.Fatalf("expected ErrDirectoryDelete, got %v", err)
	}

	// the local delete committed; only the directory half is pending
	if len(repo.calls) != 1 || repo.calls[0].name != "delete" {
		t.Fatalf("unexpected calls %+v", repo.calls)
	}
	if len(outbox.failed) != 1 {
		t.Fatalf("expected failure recorded for retry, got %d", len(outbox.failed))
	}
	if len(outbox.completed) != 0 {
		t.Fatalf("task must stay open for the reconciler")
	}
}

func TestBanHistoryIncludesOpenRecord(t *testing.T) {
	repo := &fakeModStore{
		history: []types.BanRecord{
			{ID: 7, UserID: bannedID, BannedBy: modID},
			{ID: 3, UserID: bannedID, BannedBy: adminID},
		},
		open: &types.BanRecord{ID: 7, UserID: bannedID, BannedBy: modID},
	}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	records, open, err := svc.BanHistory(context.Background(), bannedID)
	if err != nil {
		t.Fatalf("ban history: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if open == nil || open.ID != 7 {
		t.Fatalf("expected open record 7, got %+v", open)
	}
}

func TestBanHistoryWithoutOpenBan(t *testing.T) {
	repo := &fakeModStore{
		history: []types.BanRecord{{ID: 3, UserID: plainID, BannedBy: adminID}},
	}
	svc := newTestService(fixtureUsers(), repo, &fakeOutbox{}, &fakeDirectory{})

	records, open, err := svc.BanHistory(context.Background(), plainID)
	if err != nil {
		t.Fatalf("ban history: %v", err)
	}
	if len(records) != 1 || open != nil {
		t.Fatalf("expected 1 closed record and no open ban, got %d records, open %+v", len(records), open)
	}
}

func TestBanHistoryUnknownUser(t *testing.T) {
	svc := newTestService(fixtureUsers(), &fakeModStore{}, &fakeOutbox{}, &fakeDirectory{})

	if _, _, err := svc.BanHistory(context.Background(), missingID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
