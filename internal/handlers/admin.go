package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gameshelf/apiserver/internal/services"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AdminHandler provides the moderation and admin surface.
type AdminHandler struct {
	userService       *services.UserService
	moderationService *services.ModerationService
	activityService   *services.ActivityService
	statsService      *services.StatsService
}

// NewAdminHandler constructs a handler with the provided services.
func NewAdminHandler(
	userService *services.UserService,
	moderationService *services.ModerationService,
	activityService *services.ActivityService,
	statsService *services.StatsService,
) *AdminHandler {
	return &AdminHandler{
		userService:       userService,
		moderationService: moderationService,
		activityService:   activityService,
		statsService:      statsService,
	}
}

// AdminRouter registers the moderation routes. The caller is already
// authenticated; role guards narrow each route further.
func AdminRouter(
	r chi.Router,
	guard *Guard,
	userService *services.UserService,
	moderationService *services.ModerationService,
	activityService *services.ActivityService,
	statsService *services.StatsService,
) {
	handler := NewAdminHandler(userService, moderationService, activityService, statsService)

	moderator := guard.RequireModerator()
	admin := guard.RequireAdmin()

	r.With(moderator).Get("/users", handler.ListUsers)
	r.With(moderator).Get("/stats", handler.Stats)
	r.With(moderator).Get("/activity", handler.Activity)

	r.With(moderator).Get("/users/{userID}/bans", handler.UserBans)
	r.With(moderator).Put("/users/{userID}/ban", handler.BanUser)
	r.With(moderator).Put("/users/{userID}/unban", handler.UnbanUser)
	r.With(admin).Put("/users/{userID}/promote", handler.PromoteUser)
	r.With(admin).Put("/users/{userID}/demote", handler.DemoteUser)
	r.With(admin).Delete("/users/{userID}", handler.DeleteUser)
}

// moderationStatus maps workflow sentinels onto the stable status set.
func moderationStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, services.ErrSelfAction):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrInsufficientPrivilege):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrAlreadyBanned),
		errors.Is(err, services.ErrNotBanned),
		errors.Is(err, services.ErrAlreadyModerator),
		errors.Is(err, services.ErrNotModerator):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrDirectoryDelete):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, "moderation action failed"
	}
}

func targetUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

// ListUsers returns a searchable page of users for the moderation UI.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), r.URL.Query().Get("search"), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{
		Items: users,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

type UserListResponse struct {
	Items []types.User `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

type BanRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// BanUser blocks the target and records the ban.
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req BanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
	}

	if err := h.moderationService.Ban(r.Context(), actor.ID, targetID, req.Reason); err != nil {
		status, message := moderationStatus(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user banned"})
}

// UnbanUser lifts an active ban.
func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.moderationService.Unban(r.Context(), actor.ID, targetID); err != nil {
		status, message := moderationStatus(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user unbanned"})
}

// PromoteUser grants moderator status.
func (h *AdminHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.moderationService.Promote(r.Context(), actor.ID, targetID); err != nil {
		status, message := moderationStatus(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user promoted to moderator"})
}

// DemoteUser revokes moderator status.
func (h *AdminHandler) DemoteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.moderationService.Demote(r.Context(), actor.ID, targetID); err != nil {
		status, message := moderationStatus(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user demoted"})
}

// DeleteUser irreversibly removes the target account.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.moderationService.Delete(r.Context(), actor.ID, targetID); err != nil {
		status, message := moderationStatus(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

type BanHistoryResponse struct {
	Open    *types.BanRecord  `json:"open,omitempty"`
	Records []types.BanRecord `json:"records"`
}

// UserBans returns a user's ban records for the moderation UI.
func (h *AdminHandler) UserBans(w http.ResponseWriter, r *http.Request) {
	targetID, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, open, err := h.moderationService.BanHistory(r.Context(), targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load ban history")
		return
	}
	writeJSON(w, http.StatusOK, BanHistoryResponse{Open: open, Records: records})
}

// Stats returns the moderation dashboard counts.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Activity returns a page of the enriched audit log.
func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	_, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.activityService.ListActivity(r.Context(), services.ActivityFilter{
		ActionType: r.URL.Query().Get("action_type"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidFilter) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
