package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gameshelf/apiserver/internal/directory"
	"github.com/gameshelf/apiserver/internal/services"
	"github.com/gameshelf/apiserver/internal/storage"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const maxAvatarSize = 5 << 20 // 5 MiB

// UserHandler serves public profiles, profile edits and the follow graph.
type UserHandler struct {
	userService   *services.UserService
	followService *services.FollowService
	avatars       *storage.AvatarStore
}

// NewUserHandler constructs a UserHandler. avatars may be nil when no
// object storage backend is configured; avatar routes then return 503.
func NewUserHandler(userService *services.UserService, followService *services.FollowService, avatars *storage.AvatarStore) *UserHandler {
	return &UserHandler{
		userService:   userService,
		followService: followService,
		avatars:       avatars,
	}
}

// UserRouter registers the user routes. Profile reads are public; writes
// and follow edges require an authenticated, unbanned caller.
func UserRouter(r chi.Router, guard *Guard, jwtSecret string, userService *services.UserService, followService *services.FollowService, avatars *storage.AvatarStore) {
	handler := NewUserHandler(userService, followService, avatars)

	authed := RequireAuth(jwtSecret)
	active := guard.RequireNotBanned()

	r.Route("/me", func(r chi.Router) {
		r.Use(authed, active)
		r.Put("/", handler.UpdateProfile)
		r.Post("/avatar", handler.UploadAvatar)
	})

	r.Route("/{username}", func(r chi.Router) {
		r.Get("/", handler.GetProfile)
		r.Get("/avatar", handler.GetAvatar)
		r.Get("/followers", handler.Followers)
		r.Get("/following", handler.Following)
		r.With(authed, active).Post("/follow", handler.Follow)
		r.With(authed, active).Delete("/follow", handler.Unfollow)
	})
}

func (h *UserHandler) userByPath(w http.ResponseWriter, r *http.Request) (types.User, bool) {
	user, err := h.userService.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to load user")
		}
		return types.User{}, false
	}
	return user, true
}

// GetProfile returns a user's public profile.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userByPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
}

// UpdateProfile changes the caller's editable profile fields.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.DisplayName == nil || *req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), caller.ID, directoryPatch(req.DisplayName, nil))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UploadAvatar stores a new avatar object and points the profile at it.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatars == nil {
		writeError(w, http.StatusServiceUnavailable, "avatar storage is not configured")
		return
	}
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarSize {
		writeError(w, http.StatusBadRequest, "avatar file too large")
		return
	}

	key, err := h.avatars.PutAvatar(r.Context(), caller.ID, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	previous := caller.AvatarKey
	user, err := h.userService.UpdateProfile(r.Context(), caller.ID, directoryPatch(nil, &key))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	if previous != "" {
		// the old object is unreachable once the key changes
		_ = h.avatars.DeleteAvatar(r.Context(), previous)
	}
	writeJSON(w, http.StatusOK, user)
}

// GetAvatar streams the stored avatar for a user.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatars == nil {
		writeError(w, http.StatusServiceUnavailable, "avatar storage is not configured")
		return
	}
	user, ok := h.userByPath(w, r)
	if !ok {
		return
	}
	if user.AvatarKey == "" {
		writeError(w, http.StatusNotFound, "no avatar set")
		return
	}

	object, err := h.avatars.GetAvatar(r.Context(), user.AvatarKey)
	if err != nil {
		writeError(w, http.StatusNotFound, "avatar not found")
		return
	}
	defer object.Close()

	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, object)
}

// Follow creates a follow edge from the caller to the path user.
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	target, ok := h.userByPath(w, r)
	if !ok {
		return
	}

	if err := h.followService.Follow(r.Context(), caller.ID, target.ID); err != nil {
		switch {
		case errors.Is(err, services.ErrSelfFollow):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to follow user")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "following " + target.Username})
}

// Unfollow removes the follow edge if present.
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	target, ok := h.userByPath(w, r)
	if !ok {
		return
	}

	if err := h.followService.Unfollow(r.Context(), caller.ID, target.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unfollow user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "unfollowed " + target.Username})
}

// Followers lists the users following the path user.
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.followPage(w, r, h.followService.Followers)
}

// Following lists the users the path user follows.
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.followPage(w, r, h.followService.Following)
}

func (h *UserHandler) followPage(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, userID, offset, limit int) ([]types.User, error)) {
	user, ok := h.userByPath(w, r)
	if !ok {
		return
	}
	_, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := load(r.Context(), user.ID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load follow list")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func directoryPatch(displayName, avatarKey *string) directory.MetadataPatch {
	return directory.MetadataPatch{DisplayName: displayName, AvatarKey: avatarKey}
}
