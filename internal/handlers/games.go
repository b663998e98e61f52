package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gameshelf/apiserver/internal/catalog"
	"github.com/gameshelf/apiserver/internal/services"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// GameHandler proxies catalog lookups and manages the local mirror.
type GameHandler struct {
	source   catalog.Source
	mirror   *store.GameRepository
	activity *services.ActivityService
}

// NewGameHandler constructs a GameHandler.
func NewGameHandler(source catalog.Source, mirror *store.GameRepository, activity *services.ActivityService) *GameHandler {
	return &GameHandler{source: source, mirror: mirror, activity: activity}
}

// GameRouter registers the catalog routes. Lookups are public; mirror
// management is limited to moderators.
func GameRouter(r chi.Router, guard *Guard, jwtSecret string, source catalog.Source, mirror *store.GameRepository, activity *services.ActivityService) {
	handler := NewGameHandler(source, mirror, activity)

	moderator := guard.RequireModerator()

	r.Get("/search", handler.Search)
	r.Get("/{gameID}", handler.Get)
	r.With(RequireAuth(jwtSecret), moderator).Post("/{gameID}/mirror", handler.AddMirror)
	r.With(RequireAuth(jwtSecret), moderator).Delete("/{gameID}/mirror", handler.RemoveMirror)
}

func gameIDFromPath(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "gameID"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid game id")
	}
	return id, nil
}

// Search runs a catalog search.
func (h *GameHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = parsed
	}

	games, err := h.source.SearchGames(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "catalog search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": games})
}

// Get resolves one game, preferring the local mirror over a catalog call.
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := gameIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if game, err := h.mirror.Get(r.Context(), id); err == nil {
		writeJSON(w, http.StatusOK, game)
		return
	}

	game, err := h.source.GetGame(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusBadGateway, "catalog lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// AddMirror copies a catalog entry into the local mirror and records the
// action in the activity log.
func (h *GameHandler) AddMirror(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := gameIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.source.GetGame(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusBadGateway, "catalog lookup failed")
		return
	}
	if err := h.mirror.Upsert(r.Context(), game); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mirror game")
		return
	}

	details := fmt.Sprintf("mirrored %q", game.Name)
	if err := h.activity.RecordCatalogAction(r.Context(), actor.ID, types.ActionAddGame, game.ID, details); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record action")
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

// RemoveMirror drops a mirror row and records the action.
func (h *GameHandler) RemoveMirror(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := gameIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.mirror.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not mirrored")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove mirror")
		return
	}

	if err := h.activity.RecordCatalogAction(r.Context(), actor.ID, types.ActionRemoveGame, id, "mirror removed"); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record action")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "mirror removed"})
}
