package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curasoft/emr-assist/internal/favorites"
	"github.com/curasoft/emr-assist/pkg/logging"
)

// FavoritesHandler manages a user's favorite clinical guidelines.
type FavoritesHandler struct {
	favorites *favorites.Service
	logger    *logging.Logger
}

// NewFavoritesHandler creates a favorites handler.
func NewFavoritesHandler(svc *favorites.Service, logger *logging.Logger) *FavoritesHandler {
	if svc == nil {
		panic("handlers: favorites service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FavoritesHandler{favorites: svc, logger: logger}
}

// List returns the user's favorite guidelines.
// GET /api/users/{userID}/favorites
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	list, err := h.favorites.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("favorites: list failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to load favorites")
		return
	}
	if list == nil {
		list = []favorites.Guideline{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"favorites": list})
}

// Add saves a guideline to the user's favorites.
// POST /api/users/{userID}/favorites
func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var g favorites.Guideline
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if g.Title == "" {
		respondError(w, http.StatusBadRequest, "guideline title is required")
		return
	}

	saved, err := h.favorites.Add(r.Context(), userID, g)
	if err != nil {
		h.logger.Error("favorites: add failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to save favorite")
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

// Check reports whether a guideline is in the user's favorites, so the
// client can render the bookmark toggle without fetching the whole list.
// GET /api/users/{userID}/favorites/{guidelineID}
func (h *FavoritesHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	guidelineID := chi.URLParam(r, "guidelineID")

	ok, err := h.favorites.IsFavorite(r.Context(), userID, guidelineID)
	if err != nil {
		h.logger.Error("favorites: check failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to check favorite")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"favorite": ok})
}

// Remove drops a guideline from the user's favorites.
// DELETE /api/users/{userID}/favorites/{guidelineID}
func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	guidelineID := chi.URLParam(r, "guidelineID")

	if err := h.favorites.Remove(r.Context(), userID, guidelineID); err != nil {
		h.logger.Error("favorites: remove failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to remove favorite")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
