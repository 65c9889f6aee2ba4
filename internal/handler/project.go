package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/punchlist/internal/activity"
	"github.com/dukerupert/punchlist/internal/blob"
	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/store"
	"github.com/dukerupert/punchlist/internal/websocket"
)

type ProjectHandler struct {
	projects *store.ProjectStore
	tags     *store.TagStore
	members  *store.MemberStore
	photos   *store.PhotoStore
	blobs    blob.Store
	recorder *activity.Recorder
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewProjectHandler(ps *store.ProjectStore, ts *store.TagStore, ms *store.MemberStore, phs *store.PhotoStore, blobs blob.Store, rec *activity.Recorder, hub *websocket.Hub, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: ps, tags: ts, members: ms, photos: phs, blobs: blobs, recorder: rec, hub: hub, logger: logger}
}

// projectRequest serves both create and partial update. Absent fields are
// left alone on update; nullable fields may be cleared with null.
type projectRequest struct {
	Title           *string          `json:"title"`
	Description     Optional[string] `json:"description"`
	Type            *string          `json:"type"`
	Status          *string          `json:"status"`
	Priority        Optional[string] `json:"priority"`
	OwnerID         Optional[string] `json:"ownerId"`
	ImplementerID   Optional[string] `json:"implementerId"`
	TargetDate      Optional[string] `json:"targetDate"`
	EstimatedBudget Optional[int64]  `json:"estimatedBudget"`
	ActualBudget    Optional[int64]  `json:"actualBudget"`
	TagIDs          *[]string        `json:"tagIds"`
}

// apply copies the supplied fields onto p and validates the result. It
// returns a client-facing message for the first problem found.
func (req *projectRequest) apply(p *model.Project) string {
	if req.Title != nil {
		p.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description.Set {
		p.Description = trimmed(req.Description.Value)
	}
	if req.Type != nil {
		p.Type = *req.Type
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.Priority.Set {
		p.Priority = trimmed(req.Priority.Value)
	}
	if req.OwnerID.Set {
		p.OwnerID = trimmed(req.OwnerID.Value)
	}
	if req.ImplementerID.Set {
		p.ImplementerID = trimmed(req.ImplementerID.Value)
	}
	if req.TargetDate.Set {
		p.TargetDate = trimmed(req.TargetDate.Value)
	}
	if req.EstimatedBudget.Set {
		p.EstimatedBudget = req.EstimatedBudget.Value
	}
	if req.ActualBudget.Set {
		p.ActualBudget = req.ActualBudget.Value
	}

	switch {
	case p.Title == "":
		return "title is required"
	case !model.ValidProjectType(p.Type):
		return "type must be diy, contractor, or handyman"
	case !model.ValidProjectStatus(p.Status):
		return "status must be not_started, in_progress, on_hold, or completed"
	case p.Priority != nil && !model.ValidPriority(*p.Priority):
		return "priority must be low, medium, or high"
	case p.EstimatedBudget != nil && *p.EstimatedBudget < 0:
		return "estimatedBudget must not be negative"
	case p.ActualBudget != nil && *p.ActualBudget < 0:
		return "actualBudget must not be negative"
	}
	if p.TargetDate != nil {
		if _, err := time.Parse(time.DateOnly, *p.TargetDate); err != nil {
			return "targetDate must be a YYYY-MM-DD date"
		}
	}
	return ""
}

// checkTags canonicalizes the ids, drops duplicates, and reports unknown ones.
func (h *ProjectHandler) checkTags(ctx context.Context, ids []string) ([]string, string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := parseID(raw)
		if err != nil {
			return nil, "tagIds must contain valid ids", nil
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	missing, err := h.tags.Missing(ctx, out)
	if err != nil {
		return nil, "", err
	}
	if len(missing) > 0 {
		return nil, "unknown tag id: " + missing[0], nil
	}
	return out, "", nil
}

// attachTags resolves every project's tags with one query.
func (h *ProjectHandler) attachTags(ctx context.Context, projects []model.Project) ([]model.ProjectWithTags, error) {
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	byProject, err := h.tags.ForProjects(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.ProjectWithTags, len(projects))
	for i, p := range projects {
		tags := byProject[p.ID]
		if tags == nil {
			tags = []model.Tag{}
		}
		out[i] = model.ProjectWithTags{Project: p, Tags: tags}
	}
	return out, nil
}

func (h *ProjectHandler) withTags(ctx context.Context, p *model.Project) (model.ProjectWithTags, error) {
	out, err := h.attachTags(ctx, []model.Project{*p})
	if err != nil {
		return model.ProjectWithTags{}, err
	}
	return out[0], nil
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ProjectFilter{
		Status:  q.Get("status"),
		Type:    q.Get("type"),
		OwnerID: q.Get("ownerId"),
	}
	if filter.Status != "" && !model.ValidProjectStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if filter.Type != "" && !model.ValidProjectType(filter.Type) {
		writeError(w, http.StatusBadRequest, "invalid type filter")
		return
	}
	if filter.OwnerID != "" {
		id, err := parseID(filter.OwnerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ownerId filter")
			return
		}
		filter.OwnerID = id
	}

	projects, err := h.projects.List(r.Context(), filter)
	if err != nil {
		serverError(w, h.logger, "failed to list projects", err)
		return
	}
	out, err := h.attachTags(r.Context(), projects)
	if err != nil {
		serverError(w, h.logger, "failed to load project tags", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	project, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to get project", err)
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	out, err := h.withTags(r.Context(), project)
	if err != nil {
		serverError(w, h.logger, "failed to load project tags", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := model.Project{Status: model.ProjectStatusNotStarted}
	if msg := req.apply(&p); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	msg, err := checkMembers(r.Context(), h.members,
		memberRef{"ownerId", p.OwnerID}, memberRef{"implementerId", p.ImplementerID})
	if err != nil {
		serverError(w, h.logger, "failed to check members", err)
		return
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var tagIDs []string
	if req.TagIDs != nil {
		tagIDs, msg, err = h.checkTags(r.Context(), *req.TagIDs)
		if err != nil {
			serverError(w, h.logger, "failed to check tags", err)
			return
		}
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	project, err := h.projects.Create(r.Context(), p)
	if err != nil {
		serverError(w, h.logger, "failed to create project", err)
		return
	}
	if len(tagIDs) > 0 {
		if err := h.projects.SetTags(r.Context(), project.ID, tagIDs); err != nil {
			// The project row stays; the client sees it without tags.
			h.logger.Error("attach tags to new project", "project_id", project.ID, "error", err)
		}
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionCreated,
		EntityType:  model.EntityProject,
		EntityID:    project.ID,
		EntityTitle: project.Title,
		ProjectID:   project.ID,
	})
	h.hub.Broadcast(websocket.NewMessage("project", "created", project.ID, nil))

	out, err := h.withTags(r.Context(), project)
	if err != nil {
		serverError(w, h.logger, "failed to load project tags", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to get project", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	next := *existing
	if msg := req.apply(&next); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	var refs []memberRef
	if req.OwnerID.Set {
		refs = append(refs, memberRef{"ownerId", next.OwnerID})
	}
	if req.ImplementerID.Set {
		refs = append(refs, memberRef{"implementerId", next.ImplementerID})
	}
	msg, err := checkMembers(r.Context(), h.members, refs...)
	if err != nil {
		serverError(w, h.logger, "failed to check members", err)
		return
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var tagIDs []string
	if req.TagIDs != nil {
		tagIDs, msg, err = h.checkTags(r.Context(), *req.TagIDs)
		if err != nil {
			serverError(w, h.logger, "failed to check tags", err)
			return
		}
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	next.CompletedAt = model.ProjectCompletedAt(existing.Status, next.Status, existing.CompletedAt, time.Now().UTC())

	project, err := h.projects.Update(r.Context(), next)
	if err != nil {
		serverError(w, h.logger, "failed to update project", err)
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if req.TagIDs != nil {
		if err := h.projects.SetTags(r.Context(), project.ID, tagIDs); err != nil {
			serverError(w, h.logger, "failed to update project tags", err)
			return
		}
	}

	action := model.ActionUpdated
	if project.Status == model.ProjectStatusCompleted && existing.Status != model.ProjectStatusCompleted {
		action = model.ActionCompleted
	}
	var meta map[string]string
	if existing.Status != project.Status {
		meta = map[string]string{"from": existing.Status, "to": project.Status}
	}
	entry := activity.Entry{
		Action:      action,
		EntityType:  model.EntityProject,
		EntityID:    project.ID,
		EntityTitle: project.Title,
		ProjectID:   project.ID,
	}
	if meta != nil {
		entry.Metadata = meta
	}
	h.recorder.Record(r.Context(), entry)
	h.hub.Broadcast(websocket.NewMessage("project", action, project.ID, nil))

	out, err := h.withTags(r.Context(), project)
	if err != nil {
		serverError(w, h.logger, "failed to load project tags", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	// Collect the blob keys first; the photo rows go with the project.
	keys, err := h.photos.BlobKeys(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to list project photos", err)
		return
	}

	project, err := h.projects.Delete(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to delete project", err)
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	for _, key := range keys {
		if err := h.blobs.Delete(r.Context(), key); err != nil {
			h.logger.Error("orphaned photo blob after project delete", "project_id", id, "key", key, "error", err)
		}
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionDeleted,
		EntityType:  model.EntityProject,
		EntityTitle: project.Title,
	})
	h.hub.Broadcast(websocket.NewMessage("project", "deleted", project.ID, nil))

	writeSuccess(w)
}
