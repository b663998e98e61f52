package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gameshelf/apiserver/internal/catalog"
	"github.com/gameshelf/apiserver/internal/services"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// ListHandler serves game-list curation.
type ListHandler struct {
	listService *services.GameListService
	userService *services.UserService
}

// NewListHandler constructs a ListHandler.
func NewListHandler(listService *services.GameListService, userService *services.UserService) *ListHandler {
	return &ListHandler{listService: listService, userService: userService}
}

// ListRouter registers the list routes. Reads are public with visibility
// enforced per list; writes require an authenticated, unbanned caller.
func ListRouter(r chi.Router, guard *Guard, jwtSecret string, listService *services.GameListService, userService *services.UserService) {
	handler := NewListHandler(listService, userService)

	authed := RequireAuth(jwtSecret)
	optional := OptionalAuth(jwtSecret)
	active := guard.RequireNotBanned()

	r.With(authed, active).Post("/", handler.Create)
	r.With(optional).Get("/user/{username}", handler.ListsForUser)

	r.Route("/{listID}", func(r chi.Router) {
		r.With(optional).Get("/", handler.Get)
		r.With(optional).Get("/entries", handler.Entries)
		r.With(authed, active).Put("/", handler.Update)
		r.With(authed, active).Delete("/", handler.Delete)
		r.With(authed, active).Post("/entries", handler.AddEntry)
		r.With(authed, active).Delete("/entries/{gameID}", handler.RemoveEntry)
	})
}

// viewerID resolves the optional caller. Unauthenticated requests read
// public lists with a viewer id of 0.
func viewerID(r *http.Request) int {
	if user, ok := CurrentUser(r.Context()); ok {
		return user.ID
	}
	id, err := userIDFromContext(r.Context())
	if err != nil {
		return 0
	}
	return id
}

func listIDFromPath(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "listID"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid list id")
	}
	return id, nil
}

func writeListError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "list not found")
	case errors.Is(err, services.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, catalog.ErrGameNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	default:
		writeError(w, http.StatusInternalServerError, "list operation failed")
	}
}

type ListRequest struct {
	Name     string `json:"name"`
	IsPublic bool   `json:"is_public"`
}

// Create makes a new list owned by the caller.
func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	list, err := h.listService.Create(r.Context(), caller.ID, req.Name, req.IsPublic)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

// Get returns a single list if visible to the caller.
func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	listID, err := listIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.listService.Get(r.Context(), viewerID(r), listID)
	if err != nil {
		writeListError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListsForUser returns a user's lists, restricted to public ones for
// everyone but the owner.
func (h *ListHandler) ListsForUser(w http.ResponseWriter, r *http.Request) {
	owner, err := h.userService.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to load user")
		}
		return
	}

	lists, err := h.listService.ListsForUser(r.Context(), viewerID(r), owner.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load lists")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lists})
}

// Update renames a list or changes its visibility.
func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	listID, err := listIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	list, err := h.listService.Update(r.Context(), caller.ID, listID, req.Name, req.IsPublic)
	if err != nil {
		writeListError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Delete removes a list and its entries.
func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	listID, err := listIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.listService.Delete(r.Context(), caller.ID, listID); err != nil {
		writeListError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "list deleted"})
}

type EntryRequest struct {
	GameID int              `json:"game_id"`
	Status types.PlayStatus `json:"status"`
	Rating *int             `json:"rating,omitempty"`
	Note   string           `json:"note,omitempty"`
}

// AddEntry puts a game on the list, creating or updating the entry.
func (h *ListHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	listID, err := listIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.GameID < 1 {
		writeError(w, http.StatusBadRequest, "game_id is required")
		return
	}

	err = h.listService.AddEntry(r.Context(), caller.ID, listID, types.GameListEntry{
		GameID: req.GameID,
		Status: req.Status,
		Rating: req.Rating,
		Note:   req.Note,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, services.ErrNotOwner) || errors.Is(err, catalog.ErrGameNotFound) {
			writeListError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "entry saved"})
}

// RemoveEntry takes a game off the list.
func (h *ListHandler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	listID, err := listIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gameID, err := strconv.Atoi(chi.URLParam(r, "gameID"))
	if err != nil || gameID < 1 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	if err := h.listService.RemoveEntry(r.Context(), caller.ID, listID, gameID); err != nil {
		writeListError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "entry removed"})
}

// Entries returns the games on a visible list, joined with mirror rows.
func (h *ListHandler) Entries(w http.ResponseWriter, r *http.Request) {
	listID, err := listIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.listService.Entries(r.Context(), viewerID(r), listID)
	if err != nil {
		writeListError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
