package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/punchlist/internal/activity"
	"github.com/dukerupert/punchlist/internal/identity"
	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/store"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

type ActivityHandler struct {
	activities *store.ActivityStore
	projects   *store.ProjectStore
	members    *store.MemberStore
	recorder   *activity.Recorder
	logger     *slog.Logger
}

func NewActivityHandler(as *store.ActivityStore, ps *store.ProjectStore, ms *store.MemberStore, rec *activity.Recorder, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: as, projects: ps, members: ms, recorder: rec, logger: logger}
}

// List returns the newest activities first. limit defaults to 20 and may not
// exceed 100.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultActivityLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxActivityLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	projectID := q.Get("projectId")
	if projectID != "" {
		id, err := parseID(projectID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid projectId")
			return
		}
		projectID = id
	}

	activities, err := h.activities.List(r.Context(), limit, projectID)
	if err != nil {
		serverError(w, h.logger, "failed to list activities", err)
		return
	}
	if activities == nil {
		activities = []model.ActivityView{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// Create appends a client-described activity, for events the server does not
// record on its own.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action      string          `json:"action"`
		EntityType  string          `json:"entityType"`
		EntityID    *string         `json:"entityId"`
		EntityTitle *string         `json:"entityTitle"`
		ProjectID   *string         `json:"projectId"`
		ActorID     *string         `json:"actorId"`
		Metadata    json.RawMessage `json:"metadata"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !model.ValidAction(req.Action) {
		writeError(w, http.StatusBadRequest, "action must be one of created, updated, deleted, completed")
		return
	}
	if !model.ValidEntityType(req.EntityType) {
		writeError(w, http.StatusBadRequest, "entityType must be one of project, task, member, note, photo")
		return
	}

	actorID := trimmed(req.ActorID)
	if actorID == nil {
		actorID = identity.Actor(r.Context())
	}
	msg, err := checkMembers(r.Context(), h.members, memberRef{"actorId", actorID})
	if err != nil {
		serverError(w, h.logger, "failed to check members", err)
		return
	}
	if msg != "" {
		if req.ActorID != nil {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		actorID = nil
	}

	projectID := trimmed(req.ProjectID)
	if projectID != nil {
		id, err := parseID(*projectID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "projectId must be a valid id")
			return
		}
		ok, err := h.projects.Exists(r.Context(), id)
		if err != nil {
			serverError(w, h.logger, "failed to get project", err)
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "projectId: project not found")
			return
		}
		projectID = &id
	}

	e := activity.Entry{
		Action:      req.Action,
		EntityType:  req.EntityType,
		EntityID:    deref(trimmed(req.EntityID)),
		EntityTitle: deref(trimmed(req.EntityTitle)),
		ProjectID:   deref(projectID),
		ActorID:     deref(actorID),
	}
	if len(req.Metadata) > 0 {
		e.Metadata = req.Metadata
	}

	// The actor is resolved above; keep the recorder from falling back to
	// the header.
	a, err := h.recorder.Create(identity.WithActor(r.Context(), ""), e)
	if errors.Is(err, store.ErrForeignKey) {
		writeError(w, http.StatusBadRequest, "actor or project not found")
		return
	}
	if err != nil {
		serverError(w, h.logger, "failed to create activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
