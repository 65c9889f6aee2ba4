package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dukerupert/punchlist/internal/activity"
	"github.com/dukerupert/punchlist/internal/blob"
	"github.com/dukerupert/punchlist/internal/handler"
	"github.com/dukerupert/punchlist/internal/middleware"
	"github.com/dukerupert/punchlist/internal/store"
	ws "github.com/dukerupert/punchlist/internal/websocket"
)

// Options carries the settings the router needs beyond the database.
type Options struct {
	Blobs          blob.Store
	MaxUploadBytes int64
	StaticDir      string
	WSOrigins      []string
}

type Server struct {
	db        *sql.DB
	hub       *ws.Hub
	memberH   *handler.MemberHandler
	projectH  *handler.ProjectHandler
	taskH     *handler.TaskHandler
	tagH      *handler.TagHandler
	noteH     *handler.NoteHandler
	photoH    *handler.PhotoHandler
	activityH *handler.ActivityHandler
	staticDir string
	wsOrigins []string
	logger    *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	memberStore := store.NewMemberStore(db)
	projectStore := store.NewProjectStore(db)
	taskStore := store.NewTaskStore(db)
	tagStore := store.NewTagStore(db)
	noteStore := store.NewNoteStore(db)
	photoStore := store.NewPhotoStore(db)
	activityStore := store.NewActivityStore(db)

	recorder := activity.NewRecorder(activityStore, hub, logger.With("component", "activity"))

	return &Server{
		db:        db,
		hub:       hub,
		memberH:   handler.NewMemberHandler(memberStore, recorder, hub, logger.With("component", "member")),
		projectH:  handler.NewProjectHandler(projectStore, tagStore, memberStore, photoStore, opts.Blobs, recorder, hub, logger.With("component", "project")),
		taskH:     handler.NewTaskHandler(taskStore, projectStore, memberStore, recorder, hub, logger.With("component", "task")),
		tagH:      handler.NewTagHandler(tagStore, hub, logger.With("component", "tag")),
		noteH:     handler.NewNoteHandler(noteStore, projectStore, taskStore, memberStore, recorder, hub, logger.With("component", "note")),
		photoH:    handler.NewPhotoHandler(photoStore, projectStore, memberStore, opts.Blobs, recorder, hub, logger.With("component", "photo"), opts.MaxUploadBytes),
		activityH: handler.NewActivityHandler(activityStore, projectStore, memberStore, recorder, logger.With("component", "activity_handler")),
		staticDir: opts.StaticDir,
		wsOrigins: opts.WSOrigins,
		logger:    logger,
	}
}

// Hub returns the websocket hub so callers can observe broadcasts.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.wsOrigins...))

	s.registerAPIRoutes(mux)

	// Unknown /api paths stay JSON rather than falling through to the SPA.
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	})
	if s.staticDir != "" {
		mux.Handle("/", spaHandler(s.staticDir))
	}

	return middleware.Identify(middleware.RequestLogger(s.logger.With("component", "http"))(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Member API routes
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("GET /api/members/{id}", s.memberH.Get)
	mux.HandleFunc("PUT /api/members/{id}", s.memberH.Update)
	mux.HandleFunc("DELETE /api/members/{id}", s.memberH.Delete)

	// Project API routes
	mux.HandleFunc("GET /api/projects", s.projectH.List)
	mux.HandleFunc("POST /api/projects", s.projectH.Create)
	mux.HandleFunc("GET /api/projects/{id}", s.projectH.Get)
	mux.HandleFunc("PUT /api/projects/{id}", s.projectH.Update)
	mux.HandleFunc("DELETE /api/projects/{id}", s.projectH.Delete)

	// Task API routes
	mux.HandleFunc("GET /api/projects/{projectId}/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/projects/{projectId}/tasks", s.taskH.Create)
	mux.HandleFunc("PUT /api/tasks/reorder", s.taskH.Reorder)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)

	// Tag API routes
	mux.HandleFunc("GET /api/tags", s.tagH.List)
	mux.HandleFunc("POST /api/tags", s.tagH.Create)

	// Notes API routes
	mux.HandleFunc("GET /api/notes", s.noteH.List)
	mux.HandleFunc("POST /api/notes", s.noteH.Create)
	mux.HandleFunc("PUT /api/notes/{id}", s.noteH.Update)
	mux.HandleFunc("DELETE /api/notes/{id}", s.noteH.Delete)

	// Photo API routes
	mux.HandleFunc("GET /api/projects/{projectId}/photos", s.photoH.List)
	mux.HandleFunc("POST /api/projects/{projectId}/photos", s.photoH.Upload)
	mux.HandleFunc("PATCH /api/photos/{id}", s.photoH.Update)
	mux.HandleFunc("DELETE /api/photos/{id}", s.photoH.Delete)
	mux.HandleFunc("GET /api/photos/{id}/image", s.photoH.Image)

	// Activity API routes
	mux.HandleFunc("GET /api/activities", s.activityH.List)
	mux.HandleFunc("POST /api/activities", s.activityH.Create)

	// Any other verb on a known path gets a JSON 405. The reorder path is
	// listed per method since a bare pattern would conflict with the
	// method patterns on /api/tasks/{id}.
	for _, method := range []string{"GET", "POST", "DELETE", "PATCH"} {
		mux.HandleFunc(method+" /api/tasks/reorder", handler.MethodNotAllowed)
	}
	for _, pattern := range []string{
		"/api/members",
		"/api/members/{id}",
		"/api/projects",
		"/api/projects/{id}",
		"/api/projects/{projectId}/tasks",
		"/api/projects/{projectId}/photos",
		"/api/tasks/{id}",
		"/api/tags",
		"/api/notes",
		"/api/notes/{id}",
		"/api/photos/{id}",
		"/api/photos/{id}/image",
		"/api/activities",
	} {
		mux.HandleFunc(pattern, handler.MethodNotAllowed)
	}
}

// spaHandler serves files from dir, answering index.html for any path that
// does not name a file so client-side routes survive a reload.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			handler.MethodNotAllowed(w, r)
			return
		}
		name := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
