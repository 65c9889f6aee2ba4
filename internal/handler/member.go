package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/punchlist/internal/activity"
	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/store"
	"github.com/dukerupert/punchlist/internal/websocket"
)

type MemberHandler struct {
	store    *store.MemberStore
	recorder *activity.Recorder
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewMemberHandler(s *store.MemberStore, rec *activity.Recorder, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{store: s, recorder: rec, hub: hub, logger: logger}
}

type memberRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
}

// validate trims the fields and returns a client-facing message for the
// first invalid one.
func (req *memberRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Initials = strings.TrimSpace(req.Initials)
	req.Color = strings.TrimSpace(req.Color)
	switch {
	case req.Name == "":
		return "name is required"
	case !model.ValidMemberType(req.Type):
		return "type must be family or contractor"
	case req.Initials == "":
		return "initials are required"
	case req.Color == "":
		return "color is required"
	}
	return ""
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List(r.Context())
	if err != nil {
		serverError(w, h.logger, "failed to list members", err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	member, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to get member", err)
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	member, err := h.store.Create(r.Context(), req.Name, req.Type, req.Initials, req.Color)
	if err != nil {
		serverError(w, h.logger, "failed to create member", err)
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionCreated,
		EntityType:  model.EntityMember,
		EntityID:    member.ID,
		EntityTitle: member.Name,
	})
	h.hub.Broadcast(websocket.NewMessage("member", "created", member.ID, nil))

	writeJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	member, err := h.store.Update(r.Context(), id, req.Name, req.Type, req.Initials, req.Color)
	if err != nil {
		serverError(w, h.logger, "failed to update member", err)
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionUpdated,
		EntityType:  model.EntityMember,
		EntityID:    member.ID,
		EntityTitle: member.Name,
	})
	h.hub.Broadcast(websocket.NewMessage("member", "updated", member.ID, nil))

	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	member, err := h.store.Delete(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to delete member", err)
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionDeleted,
		EntityType:  model.EntityMember,
		EntityTitle: member.Name,
	})
	h.hub.Broadcast(websocket.NewMessage("member", "deleted", member.ID, nil))

	writeSuccess(w)
}
