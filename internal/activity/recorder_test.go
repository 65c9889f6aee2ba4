package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/punchlist/internal/database"
	"github.com/dukerupert/punchlist/internal/identity"
	"github.com/dukerupert/punchlist/internal/model"
	"github.com/dukerupert/punchlist/internal/store"
	"github.com/dukerupert/punchlist/internal/websocket"
)

type testEnv struct {
	recorder   *Recorder
	activities *store.ActivityStore
	members    *store.MemberStore
	projects   *store.ProjectStore
}

func setupRecorderTest(t *testing.T, hub *websocket.Hub) testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	as := store.NewActivityStore(db)
	return testEnv{
		recorder:   NewRecorder(as, hub, slog.Default()),
		activities: as,
		members:    store.NewMemberStore(db),
		projects:   store.NewProjectStore(db),
	}
}

func TestRecordUsesContextActor(t *testing.T) {
	env := setupRecorderTest(t, nil)
	ctx := context.Background()
	m, _ := env.members.Create(ctx, "June", model.MemberTypeFamily, "J", "#123456")
	p, _ := env.projects.Create(ctx, model.Project{Title: "Shed", Type: "diy"})

	env.recorder.Record(identity.WithActor(ctx, m.ID), Entry{
		Action:      model.ActionCreated,
		EntityType:  model.EntityProject,
		EntityID:    p.ID,
		EntityTitle: p.Title,
		ProjectID:   p.ID,
		Metadata:    map[string]string{"status": p.Status},
	})

	list, err := env.activities.List(ctx, 10, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	got := list[0]
	if got.ActorID == nil || *got.ActorID != m.ID {
		t.Errorf("actorId = %v, want %s", got.ActorID, m.ID)
	}
	if got.EntityID == nil || *got.EntityID != p.ID {
		t.Errorf("entityId = %v, want %s", got.EntityID, p.ID)
	}
	var meta map[string]string
	json.Unmarshal(got.Metadata, &meta)
	if meta["status"] != model.ProjectStatusNotStarted {
		t.Errorf("metadata = %s", got.Metadata)
	}
}

func TestRecordExplicitActorWins(t *testing.T) {
	env := setupRecorderTest(t, nil)
	ctx := context.Background()
	header, _ := env.members.Create(ctx, "Kai", model.MemberTypeFamily, "K", "#000")
	explicit, _ := env.members.Create(ctx, "Lea", model.MemberTypeContractor, "L", "#fff")

	a, err := env.recorder.Create(identity.WithActor(ctx, header.ID), Entry{
		Action: model.ActionUpdated, EntityType: model.EntityMember, EntityID: explicit.ID, ActorID: explicit.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Actor == nil || a.Actor.Name != "Lea" {
		t.Errorf("actor = %+v, want Lea", a.Actor)
	}
}

func TestRecordDeletedDropsEntityID(t *testing.T) {
	env := setupRecorderTest(t, nil)
	env.recorder.Record(context.Background(), Entry{
		Action: model.ActionDeleted, EntityType: model.EntityTask, EntityID: "gone", EntityTitle: "Paint trim",
	})

	list, _ := env.activities.List(context.Background(), 10, "")
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	a := list[0]
	if a.EntityID != nil {
		t.Errorf("entityId = %v, want nil", *a.EntityID)
	}
	if a.EntityTitle == nil || *a.EntityTitle != "Paint trim" {
		t.Errorf("entityTitle = %v, want snapshot", a.EntityTitle)
	}
}

func TestCreateKeepsDeletedEntityID(t *testing.T) {
	env := setupRecorderTest(t, nil)
	a, err := env.recorder.Create(context.Background(), Entry{
		Action: model.ActionDeleted, EntityType: model.EntityPhoto, EntityID: "p-9", EntityTitle: "wall.jpg",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.EntityID == nil || *a.EntityID != "p-9" {
		t.Errorf("entityId = %v, want p-9", a.EntityID)
	}
}

func TestRecordUnknownHeaderActor(t *testing.T) {
	env := setupRecorderTest(t, nil)
	ctx := identity.WithActor(context.Background(), "6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	env.recorder.Record(ctx, Entry{Action: model.ActionCreated, EntityType: model.EntityMember, EntityTitle: "Mo"})

	list, _ := env.activities.List(context.Background(), 10, "")
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].ActorID != nil {
		t.Errorf("actorId = %v, want nil", *list[0].ActorID)
	}
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	env := setupRecorderTest(t, nil)
	// An invalid action violates the CHECK constraint; Record must not panic.
	env.recorder.Record(context.Background(), Entry{Action: "exploded", EntityType: model.EntityTask})

	list, _ := env.activities.List(context.Background(), 10, "")
	if len(list) != 0 {
		t.Errorf("len = %d, want 0", len(list))
	}
}

func TestRecordNilRecorder(t *testing.T) {
	var r *Recorder
	// Should not panic
	r.Record(context.Background(), Entry{Action: model.ActionCreated, EntityType: model.EntityTask})
}

func TestRecordBroadcasts(t *testing.T) {
	hub := websocket.NewHub(slog.Default())
	env := setupRecorderTest(t, hub)
	ctx := context.Background()
	p, _ := env.projects.Create(ctx, model.Project{Title: "Gate", Type: "handyman"})

	srv := httptest.NewServer(websocket.HandleWebSocket(hub, slog.Default()))
	defer srv.Close()
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(dialCtx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()
	for deadline := time.Now().Add(2 * time.Second); hub.ClientCount() == 0; time.Sleep(10 * time.Millisecond) {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
	}

	env.recorder.Record(ctx, Entry{Action: model.ActionUpdated, EntityType: model.EntityProject, EntityID: p.ID, ProjectID: p.ID})

	_, data, err := conn.Read(dialCtx)
	if err != nil {
		t.Fatalf("timeout waiting for broadcast: %v", err)
	}
	var msg websocket.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Entity != "activity" || msg.Extra["projectId"] != p.ID {
		t.Errorf("message = %+v, want activity for project %s", msg, p.ID)
	}
}
