package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/punchlist/internal/activity"
	"github.com/dukerupert/punchlist/internal/identity"
	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/store"
	"github.com/dukerupert/punchlist/internal/websocket"
)

type NoteHandler struct {
	notes    *store.NoteStore
	projects *store.ProjectStore
	tasks    *store.TaskStore
	members  *store.MemberStore
	recorder *activity.Recorder
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewNoteHandler(ns *store.NoteStore, ps *store.ProjectStore, ts *store.TaskStore, ms *store.MemberStore, rec *activity.Recorder, hub *websocket.Hub, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: ns, projects: ps, tasks: ts, members: ms, recorder: rec, hub: hub, logger: logger}
}

type noteRequest struct {
	ProjectID *string `json:"projectId"`
	TaskID    *string `json:"taskId"`
	Content   string  `json:"content"`
	AuthorID  *string `json:"authorId"`
}

func (h *NoteHandler) broadcast(action string, n *model.NoteView) {
	extra := map[string]any{}
	if n.ProjectID != nil {
		extra["projectId"] = *n.ProjectID
	}
	if n.TaskID != nil {
		extra["taskId"] = *n.TaskID
	}
	h.hub.Broadcast(websocket.NewMessage("note", action, n.ID, extra))
}

// noteProjectID finds the project a note belongs to, directly or through
// its task, for the activity feed.
func (h *NoteHandler) noteProjectID(r *http.Request, n *model.NoteView) string {
	if n.ProjectID != nil {
		return *n.ProjectID
	}
	if n.TaskID == nil {
		return ""
	}
	task, err := h.tasks.GetByID(r.Context(), *n.TaskID)
	if err != nil || task == nil {
		return ""
	}
	return task.ProjectID
}

// List returns notes for the project, the task, or either when both are
// given.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID, taskID := q.Get("projectId"), q.Get("taskId")
	if projectID == "" && taskID == "" {
		writeError(w, http.StatusBadRequest, "projectId or taskId is required")
		return
	}
	var err error
	if projectID != "" {
		if projectID, err = parseID(projectID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid projectId")
			return
		}
	}
	if taskID != "" {
		if taskID, err = parseID(taskID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid taskId")
			return
		}
	}

	notes, err := h.notes.List(r.Context(), projectID, taskID)
	if err != nil {
		serverError(w, h.logger, "failed to list notes", err)
		return
	}
	if notes == nil {
		notes = []model.NoteView{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	projectID, taskID := trimmed(req.ProjectID), trimmed(req.TaskID)
	if projectID == nil && taskID == nil {
		writeError(w, http.StatusBadRequest, "projectId or taskId is required")
		return
	}

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
	if taskID != nil {
		id, err := parseID(*taskID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "taskId must be a valid id")
			return
		}
		task, err := h.tasks.GetByID(r.Context(), id)
		if err != nil {
			serverError(w, h.logger, "failed to get task", err)
			return
		}
		if task == nil {
			writeError(w, http.StatusBadRequest, "taskId: task not found")
			return
		}
		if projectID != nil && task.ProjectID != *projectID {
			writeError(w, http.StatusBadRequest, "taskId: task belongs to a different project")
			return
		}
		taskID = &id
	}

	authorID := trimmed(req.AuthorID)
	if authorID == nil {
		authorID = identity.Actor(r.Context())
	}
	msg, err := checkMembers(r.Context(), h.members, memberRef{"authorId", authorID})
	if err != nil {
		serverError(w, h.logger, "failed to check members", err)
		return
	}
	if msg != "" {
		if req.AuthorID != nil {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		// The header identity is advisory; an unknown one is dropped.
		authorID = nil
	}

	note, err := h.notes.Create(r.Context(), projectID, taskID, content, authorID)
	if err != nil {
		serverError(w, h.logger, "failed to create note", err)
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionCreated,
		EntityType:  model.EntityNote,
		EntityID:    note.ID,
		EntityTitle: excerpt(note.Content),
		ProjectID:   h.noteProjectID(r, note),
		ActorID:     deref(note.AuthorID),
	})
	h.broadcast("created", note)

	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	note, err := h.notes.UpdateContent(r.Context(), id, content)
	if err != nil {
		serverError(w, h.logger, "failed to update note", err)
		return
	}
	if note == nil {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionUpdated,
		EntityType:  model.EntityNote,
		EntityID:    note.ID,
		EntityTitle: excerpt(note.Content),
		ProjectID:   h.noteProjectID(r, note),
	})
	h.broadcast("updated", note)

	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	note, err := h.notes.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to get note", err)
		return
	}
	if note == nil {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	projectID := h.noteProjectID(r, note)

	if _, err := h.notes.Delete(r.Context(), id); err != nil {
		serverError(w, h.logger, "failed to delete note", err)
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionDeleted,
		EntityType:  model.EntityNote,
		EntityTitle: excerpt(note.Content),
		ProjectID:   projectID,
	})
	h.broadcast("deleted", note)

	writeSuccess(w)
}

// excerpt shortens note content for the activity feed title.
func excerpt(s string) string {
	const max = 60
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
