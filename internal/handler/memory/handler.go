// Package memory exposes the conversation-history administration endpoints.
package memory

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mindmend/backend/internal/model/chat"
	memoryservice "github.com/mindmend/backend/internal/service/memory"
	"github.com/mindmend/backend/pkg/utils"
)

// Store is the slice of the conversation store these endpoints need.
type Store interface {
	Recent(ctx context.Context, userID string, limit int) ([]chat.Record, error)
	DeleteUser(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context, userID string) (chat.Stats, error)
}

// Handler serves user-scoped history listing, deletion, and counts. store is
// nil when the service runs stateless; every endpoint then reports 503.
type Handler struct {
	store Store
}

// New creates the memory handler.
func New(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the memory endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/memory/{userID}/recent", h.handleRecent)
	r.Get("/memory/{userID}/stats", h.handleStats)
	r.Delete("/memory/{userID}", h.handleDelete)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "conversation memory is not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.store.Recent(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "conversation memory is not configured")
		return
	}

	stats, err := h.store.Stats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "conversation memory is not configured")
		return
	}

	deleted, err := h.store.DeleteUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, memoryservice.ErrUserIDRequired) {
		utils.RespondError(w, http.StatusBadRequest, "Valid user ID is required")
		return
	}
	log.Printf("[memory] store operation failed: %v", err)
	utils.RespondError(w, http.StatusInternalServerError, "memory operation failed")
}
