package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gameshelf/apiserver/internal/directory"
	"github.com/gameshelf/apiserver/internal/services"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

type fakeUserRepo struct {
	users map[int]types.User
	err   error
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	if f.err != nil {
		return types.User{}, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range f.users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error) {
	var out []types.User
	for _, user := range f.users {
		if search == "" || strings.Contains(user.Username, search) {
			out = append(out, user)
		}
	}
	return out, len(out), nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, id int, displayName, avatarKey string) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.DisplayName = displayName
	user.AvatarKey = avatarKey
	f.users[id] = user
	return user, nil
}

type fakeModRepo struct {
	applied []string
	err     error
	history []types.BanRecord
	open    *types.BanRecord
}

func (f *fakeModRepo) apply(name string) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, name)
	return nil
}

func (f *fakeModRepo) ApplyBan(ctx context.Context, targetID, actorID int, reason *string, details string) error {
	return f.apply("ban")
}

func (f *fakeModRepo) ApplyUnban(ctx context.Context, targetID, actorID int, details string) error {
	return f.apply("unban")
}

func (f *fakeModRepo) ApplyPromote(ctx context.Context, targetID, actorID int, details string) error {
	return f.apply("promote")
}

func (f *fakeModRepo) ApplyDemote(ctx context.Context, targetID, actorID int, details string) error {
	return f.apply("demote")
}

func (f *fakeModRepo) ApplyDelete(ctx context.Context, targetID, actorID int, targetUsername, details string, outboxID uuid.UUID) error {
	return f.apply("delete")
}

func (f *fakeModRepo) OpenBan(ctx context.Context, userID int) (types.BanRecord, error) {
	if f.open == nil || f.open.UserID != userID {
		return types.BanRecord{}, store.ErrNotFound
	}
	return *f.open, nil
}

func (f *fakeModRepo) BanHistory(ctx context.Context, userID int) ([]types.BanRecord, error) {
	var records []types.BanRecord
	for _, record := range f.history {
		if record.UserID == userID {
			records = append(records, record)
		}
	}
	return records, nil
}

type fakeOutboxRepo struct{}

func (fakeOutboxRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error            { return nil }
func (fakeOutboxRepo) RecordFailure(ctx context.Context, id uuid.UUID, r string) error  { return nil }

type fakeDir struct {
	deleteErr error
}

func (f *fakeDir) LookupUser(ctx context.Context, id int) (types.User, error) {
	return types.User{}, directory.ErrNotFound
}

func (f *fakeDir) CreateUser(ctx context.Context, username, displayName, password string) (types.User, error) {
	return types.User{}, errors.New("not implemented")
}

func (f *fakeDir) VerifyCredentials(ctx context.Context, username, password string) (types.User, error) {
	return types.User{}, directory.ErrInvalidCredentials
}

func (f *fakeDir) UpdateUserMetadata(ctx context.Context, id int, patch directory.MetadataPatch) error {
	return nil
}

func (f *fakeDir) DeleteUser(ctx context.Context, id int) error { return f.deleteErr }

func (f *fakeDir) ListUsers(ctx context.Context, offset, limit int) ([]types.User, error) {
	return nil, nil
}

type fakeActivity struct {
	entries []types.EnrichedActivityEntry
	listErr error
}

func (f *fakeActivity) List(ctx context.Context, actionType string, offset, limit int) ([]types.EnrichedActivityEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries, nil
}

func (f *fakeActivity) Append(ctx context.Context, entry types.ActivityEntry) error { return nil }

func (f *fakeActivity) CountByAction(ctx context.Context) (map[types.ActionType]int, error) {
	return map[types.ActionType]int{types.ActionBanUser: 2}, nil
}

type fakeStats struct{}

func (fakeStats) Summary(ctx context.Context) (store.Stats, error) {
	return store.Stats{TotalUsers: 3}, nil
}

type adminFixture struct {
	router   *chi.Mux
	users    *fakeUserRepo
	modRepo  *fakeModRepo
	dir      *fakeDir
	activity *fakeActivity
}

func newAdminFixture() *adminFixture {
	users := &fakeUserRepo{users: map[int]types.User{
		1: {ID: 1, Username: "root", IsAdmin: true},
		2: {ID: 2, Username: "mod_one", IsModerator: true},
		3: {ID: 3, Username: "mod_two", IsModerator: true},
		4: {ID: 4, Username: "player"},
		5: {ID: 5, Username: "grief", IsBanned: true},
	}}
	modRepo := &fakeModRepo{}
	dir := &fakeDir{}
	activity := &fakeActivity{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	userService := services.NewUserService(users, dir)
	moderationService := services.NewModerationService(users, modRepo, fakeOutboxRepo{}, dir, nil, nil, log)
	activityService := services.NewActivityService(activity)
	statsService := services.NewStatsService(fakeStats{}, activity)

	guard := NewGuard(users)

	router := chi.NewRouter()
	router.Route("/admin", func(r chi.Router) {
		r.Use(RequireAuth(testSecret))
		AdminRouter(r, guard, userService, moderationService, activityService, statsService)
	})

	return &adminFixture{router: router, users: users, modRepo: modRepo, dir: dir, activity: activity}
}

func (f *adminFixture) do(t *testing.T, method, path string, userID int, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != 0 {
		token, err := issueToken(userID, []byte(testSecret), defaultTokenTTL)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminRequiresToken(t *testing.T) {
	f := newAdminFixture()

	rec := f.do(t, http.MethodPut, "/admin/users/4/ban", 0, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminRequiresModeratorRole(t *testing.T) {
	f := newAdminFixture()

	rec := f.do(t, http.MethodPut, "/admin/users/5/ban", 4, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for plain user, got %d", rec.Code)
	}
	if len(f.modRepo.applied) != 0 {
		t.Fatalf("guard rejection must not reach the store")
	}
}

func TestBanEndpoint(t *testing.T) {
	f := newAdminFixture()

	rec := f.do(t, http.MethodPut, "/admin/users/4/ban", 2, `{"reason":"spam"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.modRepo.applied) != 1 || f.modRepo.applied[0] != "ban" {
		t.Fatalf("unexpected store calls %v", f.modRepo.applied)
	}
}

func TestBanStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		caller int
		target string
		want   int
	}{
		{"moderator vs moderator", 2, "3", http.StatusForbidden},
		{"moderator vs admin", 2, "1", http.StatusForbidden},
		{"self ban", 2, "2", http.StatusForbidden},
		{"already banned", 2, "5", http.StatusBadRequest},
		{"missing target", 2, "42", http.StatusNotFound},
		{"bad id", 2, "abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAdminFixture()
			rec := f.do(t, http.MethodPut, "/admin/users/"+tc.target+"/ban", tc.caller, "")
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPromoteRequiresAdmin(t *testing.T) {
	f := newAdminFixture()

	rec := f.do(t, http.MethodPut, "/admin/users/4/promote", 2, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for moderator, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/admin/users/4/promote", 1, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDemoteConflict(t *testing.T) {
	f := newAdminFixture()

	rec := f.do(t, http.MethodPut, "/admin/users/4/demote", 1, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 demoting a non-moderator, got %d", rec.Code)
	}
}

func TestDeleteDirectoryFailureIsServerError(t *testing.T) {
	f := newAdminFixture()
	f.dir.deleteErr = errors.New("provider down")

	rec := f.do(t, http.MethodDelete, "/admin/users/4", 1, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on directory divergence, got %d: %s", rec.Code, rec.Body.String())
	}
	// the local half still committed
	if len(f.modRepo.applied) != 1 || f.modRepo.applied[0] != "delete" {
		t.Fatalf("unexpected store calls %v", f.modRepo.applied)
	}
}

func TestActivityEndpoint(t *testing.T) {
	f := newAdminFixture()

	rec := f.do(t, http.MethodGet, "/admin/activity?action_type=ban_user", 2, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var page services.ActivityPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Limit != 20 {
		t.Fatalf("unexpected limit %d", page.Limit)
	}

	rec = f.do(t, http.MethodGet, "/admin/activity?action_type=shadowban", 2, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action type, got %d", rec.Code)
	}
}

func TestActivityStoreFailureIsServerError(t *testing.T) {
	f := newAdminFixture()
	f.activity.listErr = errors.New("pq: connection refused at 10.0.0.5:5432")

	rec := f.do(t, http.MethodGet, "/admin/activity", 2, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on store failure, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Fatalf("driver internals leaked to the client: %s", rec.Body.String())
	}
}

func TestUserBansEndpoint(t *testing.T) {
	f := newAdminFixture()
	f.modRepo.history = []types.BanRecord{
		{ID: 2, UserID: 5, BannedBy: 2},
		{ID: 1, UserID: 5, BannedBy: 1},
	}
	f.modRepo.open = &types.BanRecord{ID: 2, UserID: 5, BannedBy: 2}

	rec := f.do(t, http.MethodGet, "/admin/users/5/bans", 2, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var history BanHistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history.Records))
	}
	if history.Open == nil || history.Open.ID != 2 {
		t.Fatalf("expected open record 2, got %+v", history.Open)
	}

	rec = f.do(t, http.MethodGet, "/admin/users/42/bans", 2, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/admin/users/5/bans", 4, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for plain user, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newAdminFixture()

	rec := f.do(t, http.MethodGet, "/admin/stats", 2, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats services.StatsSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalUsers != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ActionCounts[types.ActionBanUser] != 2 {
		t.Fatalf("unexpected action counts %+v", stats.ActionCounts)
	}
}
