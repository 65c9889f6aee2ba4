package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/store"
	"github.com/dukerupert/punchlist/internal/websocket"
)

type TagHandler struct {
	store  *store.TagStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewTagHandler(s *store.TagStore, hub *websocket.Hub, logger *slog.Logger) *TagHandler {
	return &TagHandler{store: s, hub: hub, logger: logger}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.store.List(r.Context())
	if err != nil {
		serverError(w, h.logger, "failed to list tags", err)
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

// Create is idempotent on the normalized name: a name that already exists
// returns the stored tag with 200 instead of 201.
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := model.NormalizeTagName(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	tag, err := h.store.Create(r.Context(), name)
	if errors.Is(err, store.ErrConflict) {
		existing, err := h.store.GetByName(r.Context(), name)
		if err != nil || existing == nil {
			h.logger.Warn("tag conflict without a readable row", "name", name, "error", err)
			writeError(w, http.StatusConflict, "tag already exists")
			return
		}
		writeJSON(w, http.StatusOK, existing)
		return
	}
	if err != nil {
		serverError(w, h.logger, "failed to create tag", err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("tag", "created", tag.ID, nil))
	writeJSON(w, http.StatusCreated, tag)
}
