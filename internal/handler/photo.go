package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/punchlist/internal/activity"
	"github.com/dukerupert/punchlist/internal/blob"
	"github.com/dukerupert/punchlist/internal/identity"
	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/saga"
	"github.com/dukerupert/punchlist/internal/store"
	"github.com/dukerupert/punchlist/internal/websocket"
)

type PhotoHandler struct {
	photos    *store.PhotoStore
	projects  *store.ProjectStore
	members   *store.MemberStore
	blobs     blob.Store
	recorder  *activity.Recorder
	hub       *websocket.Hub
	logger    *slog.Logger
	maxUpload int64
}

func NewPhotoHandler(phs *store.PhotoStore, ps *store.ProjectStore, ms *store.MemberStore, blobs blob.Store, rec *activity.Recorder, hub *websocket.Hub, logger *slog.Logger, maxUpload int64) *PhotoHandler {
	return &PhotoHandler{photos: phs, projects: ps, members: ms, blobs: blobs, recorder: rec, hub: hub, logger: logger, maxUpload: maxUpload}
}

func (h *PhotoHandler) broadcast(action string, p *model.Photo) {
	h.hub.Broadcast(websocket.NewMessage("photo", action, p.ID, map[string]any{"projectId": p.ProjectID}))
}

func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
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

	photos, err := h.photos.ListByProject(r.Context(), projectID)
	if err != nil {
		serverError(w, h.logger, "failed to list photos", err)
		return
	}
	if photos == nil {
		photos = []model.Photo{}
	}
	writeJSON(w, http.StatusOK, photos)
}

func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseIDParam(r, "projectId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	u, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
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

	uploader := u.UploadedByID
	if uploader == nil {
		uploader = identity.Actor(r.Context())
	}
	msg, err := checkMembers(r.Context(), h.members, memberRef{"uploadedById", uploader})
	if err != nil {
		serverError(w, h.logger, "failed to check members", err)
		return
	}
	if msg != "" {
		if u.UploadedByID != nil {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		uploader = nil
	}

	key, err := blob.NewKey(projectID, u.Filename, u.MimeType)
	if err != nil {
		serverError(w, h.logger, "failed to generate photo key", err)
		return
	}

	var photo *model.Photo
	err = saga.Run(r.Context(), h.logger.With("op", "upload photo", "key", key),
		saga.Step{
			Name: "put blob",
			Do: func(ctx context.Context) error {
				return h.blobs.Put(ctx, key, u.Data, blob.Meta{ContentType: u.MimeType, Filename: u.Filename})
			},
			Undo: func(ctx context.Context) error {
				return h.blobs.Delete(ctx, key)
			},
		},
		saga.Step{
			Name: "insert photo row",
			Do: func(ctx context.Context) error {
				var err error
				photo, err = h.photos.Create(ctx, model.Photo{
					ProjectID:    projectID,
					BlobKey:      key,
					Filename:     u.Filename,
					Caption:      u.Caption,
					MimeType:     u.MimeType,
					Size:         int64(len(u.Data)),
					Checksum:     blob.Checksum(u.Data),
					UploadedByID: uploader,
				})
				return err
			},
		},
	)
	if err != nil {
		serverError(w, h.logger, "failed to upload photo", err)
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionCreated,
		EntityType:  model.EntityPhoto,
		EntityID:    photo.ID,
		EntityTitle: photo.Filename,
		ProjectID:   photo.ProjectID,
		ActorID:     deref(photo.UploadedByID),
	})
	h.broadcast("created", photo)

	writeJSON(w, http.StatusCreated, photo)
}

// Image serves the stored bytes. Keys are never reused, so the response is
// cacheable forever.
func (h *PhotoHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	photo, err := h.photos.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to get photo", err)
		return
	}
	if photo == nil {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}

	var etag string
	if photo.Checksum != "" {
		etag = `"` + photo.Checksum + `"`
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	obj, err := h.blobs.Get(r.Context(), photo.BlobKey)
	if errors.Is(err, blob.ErrNotFound) {
		h.logger.Warn("photo row without blob", "photo_id", photo.ID, "key", photo.BlobKey)
		writeError(w, http.StatusNotFound, "photo data not found")
		return
	}
	if err != nil {
		serverError(w, h.logger, "failed to read photo", err)
		return
	}

	w.Header().Set("Content-Type", photo.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (h *PhotoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Caption  Optional[string] `json:"caption"`
		Filename *string          `json:"filename"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Caption.Set && req.Filename == nil {
		writeError(w, http.StatusBadRequest, "caption or filename is required")
		return
	}

	patch := store.PhotoPatch{SetCaption: req.Caption.Set, Caption: trimmed(req.Caption.Value)}
	if req.Filename != nil {
		name := strings.TrimSpace(*req.Filename)
		if name == "" || strings.ContainsAny(name, `/\`) {
			writeError(w, http.StatusBadRequest, "filename must be a non-empty name without slashes")
			return
		}
		patch.Filename = &name
	}

	photo, err := h.photos.Update(r.Context(), id, patch)
	if err != nil {
		serverError(w, h.logger, "failed to update photo", err)
		return
	}
	if photo == nil {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionUpdated,
		EntityType:  model.EntityPhoto,
		EntityID:    photo.ID,
		EntityTitle: photo.Filename,
		ProjectID:   photo.ProjectID,
	})
	h.broadcast("updated", photo)

	writeJSON(w, http.StatusOK, photo)
}

func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	photo, err := h.photos.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, "failed to get photo", err)
		return
	}
	if photo == nil {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}

	var saved *blob.Object
	err = saga.Run(r.Context(), h.logger.With("op", "delete photo", "photo_id", photo.ID, "key", photo.BlobKey),
		saga.Step{
			Name: "fetch blob",
			Do: func(ctx context.Context) error {
				obj, err := h.blobs.Get(ctx, photo.BlobKey)
				if errors.Is(err, blob.ErrNotFound) {
					return nil
				}
				saved = obj
				return err
			},
			Undo: func(context.Context) error { return nil },
		},
		saga.Step{
			Name: "delete blob",
			Do: func(ctx context.Context) error {
				return h.blobs.Delete(ctx, photo.BlobKey)
			},
			Undo: func(ctx context.Context) error {
				if saved == nil {
					return nil
				}
				return h.blobs.Put(ctx, photo.BlobKey, saved.Data, saved.Meta)
			},
		},
		saga.Step{
			Name: "delete photo row",
			Do: func(ctx context.Context) error {
				_, err := h.photos.Delete(ctx, photo.ID)
				return err
			},
		},
	)
	if err != nil {
		serverError(w, h.logger, "failed to delete photo", err)
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		Action:      model.ActionDeleted,
		EntityType:  model.EntityPhoto,
		EntityTitle: photo.Filename,
		ProjectID:   photo.ProjectID,
	})
	h.broadcast("deleted", photo)

	writeSuccess(w)
}
