// Package activity appends audit entries to the activity feed after
// mutations and announces them to live clients.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/punchlist/internal/identity"
	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/store"
	"github.com/dukerupert/punchlist/internal/websocket"
)

// Entry describes one mutation. ActorID defaults to the caller identity in
// the context. Metadata is any JSON-marshalable value, or json.RawMessage.
type Entry struct {
	Action      string
	EntityType  string
	EntityID    string
	EntityTitle string
	ProjectID   string
	ActorID     string
	Metadata    any
}

type Recorder struct {
	store  *store.ActivityStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewRecorder(s *store.ActivityStore, hub *websocket.Hub, logger *slog.Logger) *Recorder {
	return &Recorder{store: s, hub: hub, logger: logger}
}

// Record appends the entry and broadcasts it. Failures are logged and
// swallowed: the mutation being described has already happened.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	// A deleted entity has no row left to point at; the title is the snapshot.
	if e.Action == model.ActionDeleted {
		e.EntityID = ""
	}
	a, err := r.Create(ctx, e)
	if errors.Is(err, store.ErrForeignKey) && e.ActorID == "" {
		// The X-Member-ID header is opaque and may name a member that
		// does not exist; keep the entry without an actor.
		r.logger.Warn("dropping unknown actor from activity", "actor", identity.ActorID(ctx))
		a, err = r.Create(identity.WithActor(ctx, ""), e)
	}
	if err != nil {
		r.logger.Error("record activity", "action", e.Action, "entity", e.EntityType, "entity_id", e.EntityID, "error", err)
		return
	}
	r.logger.Debug("activity recorded", "id", a.ID, "action", a.Action, "entity", a.EntityType)
}

// Create appends the entry as given and broadcasts it, returning any store
// error.
func (r *Recorder) Create(ctx context.Context, e Entry) (*model.ActivityView, error) {
	a := model.Activity{
		Action:      e.Action,
		EntityType:  e.EntityType,
		EntityTitle: optional(e.EntityTitle),
		ProjectID:   optional(e.ProjectID),
		EntityID:    optional(e.EntityID),
		ActorID:     optional(e.ActorID),
	}
	if a.ActorID == nil {
		a.ActorID = identity.Actor(ctx)
	}

	switch m := e.Metadata.(type) {
	case nil:
	case json.RawMessage:
		a.Metadata = m
	default:
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal activity metadata: %w", err)
		}
		a.Metadata = raw
	}

	view, err := r.store.Create(ctx, a)
	if err != nil {
		return nil, err
	}

	var extra map[string]any
	if view.ProjectID != nil {
		extra = map[string]any{"projectId": *view.ProjectID}
	}
	r.hub.Broadcast(websocket.NewMessage("activity", model.ActionCreated, view.ID, extra))
	return view, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
