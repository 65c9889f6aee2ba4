package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/punchlist/internal/activity"
	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/store"
	"github.com/dukerupert/punchlist/internal/websocket"
)

type TaskHandler struct {
	tasks    *store.TaskStore
	projects *store.ProjectStore
	members  *store.MemberStore
	recorder *activity.Recorder
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, ps *store.ProjectStore, ms *store.MemberStore, rec *activity.Recorder, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, projects: ps, members: ms, recorder: rec, hub: hub, logger: logger}
}

type taskRequest struct {
	Title      *string          `json:"title"`
	Status     *string          `json:"status"`
	AssigneeID Optional[string] `json:"assigneeId"`
	SortOrder  *int             `json:"sortOrder"`
}

func (h *TaskHandler) broadcast(action string, t *model.Task) {
	h.hub.Broadcast(websocket.NewMessage("task", action, t.ID, map[string]any{"projectId": t.ProjectID}))
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseIDParam(r, "projectId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	ok, err := h.projects.Exists(r.Context(), projectID)
	if err != nil {
		serverError(w, h.logger, "failed to get project", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	tasks, err := h.tasks.ListByProject(r.Context(), projectID)
	if err != nil {
		serverError(w, h.logger, "failed to list tasks", err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	task, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to get task", err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseIDParam(r, "projectId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title := strings.TrimSpace(deref(req.Title))
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	status := model.TaskStatusTodo
	if req.Status != nil {
		status = *req.Status
	}
	if !model.ValidTaskStatus(status) {
		writeError(w, http.StatusBadRequest, "status must be todo, in_progress, or done")
		return
	}

	project, err := h.projects.GetByID(r.Context(), projectID)
	if err != nil {
		serverError(w, h.logger, "failed to get project", err)
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	assignee := trimmed(req.AssigneeID.Value)
	msg, err := checkMembers(r.Context(), h.members, memberRef{"assigneeId", assignee})
	if err != nil {
		serverError(w, h.logger, "failed to check members", err)
		return
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	task, err := h.tasks.Create(r.Context(), projectID, title, status, assignee, req.SortOrder)
	if err != nil {
		serverError(w, h.logger, "failed to create task", err)
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionCreated,
		EntityType:  model.EntityTask,
		EntityID:    task.ID,
		EntityTitle: task.Title,
		ProjectID:   task.ProjectID,
	})
	h.broadcast("created", task)

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := model.TaskPatch{Status: req.Status, SortOrder: req.SortOrder}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		patch.Title = &title
	}
	if req.Status != nil && !model.ValidTaskStatus(*req.Status) {
		writeError(w, http.StatusBadRequest, "status must be todo, in_progress, or done")
		return
	}
	if req.AssigneeID.Set {
		patch.SetAssignee = true
		patch.AssigneeID = trimmed(req.AssigneeID.Value)
		msg, err := checkMembers(r.Context(), h.members, memberRef{"assigneeId", patch.AssigneeID})
		if err != nil {
			serverError(w, h.logger, "failed to check members", err)
			return
		}
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	task, err := h.tasks.Update(r.Context(), id, patch)
	if err != nil {
		serverError(w, h.logger, "failed to update task", err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	action := model.ActionUpdated
	if req.Status != nil && *req.Status == model.TaskStatusDone {
		action = model.ActionCompleted
	}
	entry := activity.Entry{
		Action:      action,
		EntityType:  model.EntityTask,
		EntityID:    task.ID,
		EntityTitle: task.Title,
		ProjectID:   task.ProjectID,
	}
	if req.Status != nil {
		entry.Metadata = map[string]string{"status": task.Status}
	}
	h.recorder.Record(r.Context(), entry)
	h.broadcast(action, task)

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	task, err := h.tasks.Delete(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to delete task", err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionDeleted,
		EntityType:  model.EntityTask,
		EntityTitle: task.Title,
		ProjectID:   task.ProjectID,
	})
	h.broadcast("deleted", task)

	writeSuccess(w)
}

func (h *TaskHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskIDs []string `json:"taskIds"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.TaskIDs) == 0 {
		writeError(w, http.StatusBadRequest, "taskIds is required")
		return
	}
	ids := make([]string, len(req.TaskIDs))
	for i, raw := range req.TaskIDs {
		id, err := parseID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "taskIds must contain valid ids")
			return
		}
		ids[i] = id
	}

	projectID, err := h.tasks.Reorder(r.Context(), ids)
	if errors.Is(err, store.ErrInvalidOrder) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		serverError(w, h.logger, "failed to reorder tasks", err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("task", "reordered", "", map[string]any{"projectId": projectID}))
	writeSuccess(w)
}
