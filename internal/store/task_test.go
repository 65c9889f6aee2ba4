package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/punchlist/internal/model"
)

func TestTaskSortOrderAppends(t *testing.T) {
	db := setupTestDB(t)
	s := NewTaskStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Porch")

	next, err := s.NextSortOrder(ctx, p.ID)
	if err != nil {
		t.Fatalf("next sort order: %v", err)
	}
	if next != 0 {
		t.Errorf("empty project next = %d, want 0", next)
	}

	for _, order := range []int{0, 2, 5} {
		if _, err := s.Create(ctx, p.ID, "fixed", "", nil, ptr(order)); err != nil {
			t.Fatalf("create task at %d: %v", order, err)
		}
	}

	task, err := s.Create(ctx, p.ID, "appended", "", nil, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.SortOrder != 6 {
		t.Errorf("sortOrder = %d, want 6", task.SortOrder)
	}
	if task.Status != model.TaskStatusTodo {
		t.Errorf("status = %q, want %q", task.Status, model.TaskStatusTodo)
	}

	other := createTestProject(t, db, "Other")
	first, err := s.Create(ctx, other.ID, "first", "", nil, nil)
	if err != nil {
		t.Fatalf("create task in other project: %v", err)
	}
	if first.SortOrder != 0 {
		t.Errorf("other project sortOrder = %d, want 0", first.SortOrder)
	}
}

func TestTaskCreateUnknownProject(t *testing.T) {
	db := setupTestDB(t)
	_, err := NewTaskStore(db).Create(context.Background(), "missing", "x", "", nil, ptr(0))
	if !errors.Is(err, ErrForeignKey) {
		t.Errorf("err = %v, want ErrForeignKey", err)
	}
}

func TestTaskListOrder(t *testing.T) {
	stepClock(t)
	db := setupTestDB(t)
	s := NewTaskStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Yard")

	c, _ := s.Create(ctx, p.ID, "c", "", nil, ptr(1))
	a, _ := s.Create(ctx, p.ID, "a", "", nil, ptr(0))
	b, _ := s.Create(ctx, p.ID, "b", "", nil, ptr(1))

	tasks, err := s.ListByProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	want := []string{a.ID, c.ID, b.ID}
	if len(tasks) != len(want) {
		t.Fatalf("len = %d, want %d", len(tasks), len(want))
	}
	for i := range tasks {
		if tasks[i].ID != want[i] {
			t.Errorf("tasks[%d] = %s, want %s", i, tasks[i].Title, want[i])
		}
	}
}

func TestTaskUpdateCompletion(t *testing.T) {
	stepClock(t)
	db := setupTestDB(t)
	s := NewTaskStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Windows")
	task, _ := s.Create(ctx, p.ID, "Caulk", "", nil, nil)

	done, err := s.Update(ctx, task.ID, model.TaskPatch{Status: ptr(model.TaskStatusDone)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("completedAt = nil after done")
	}
	first := *done.CompletedAt

	// Setting done again restamps; the prior status is not consulted.
	again, _ := s.Update(ctx, task.ID, model.TaskPatch{Status: ptr(model.TaskStatusDone)})
	if again.CompletedAt == nil || !again.CompletedAt.After(first) {
		t.Errorf("completedAt = %v, want after %v", again.CompletedAt, first)
	}

	// A patch without status leaves completion alone.
	renamed, _ := s.Update(ctx, task.ID, model.TaskPatch{Title: ptr("Caulk all")})
	if renamed.Title != "Caulk all" || renamed.CompletedAt == nil {
		t.Errorf("renamed = %+v, want title changed and completedAt kept", renamed)
	}

	reopened, _ := s.Update(ctx, task.ID, model.TaskPatch{Status: ptr(model.TaskStatusInProgress)})
	if reopened.CompletedAt != nil {
		t.Errorf("completedAt = %v after in_progress, want nil", reopened.CompletedAt)
	}
}

func TestTaskUpdateAssignee(t *testing.T) {
	db := setupTestDB(t)
	s := NewTaskStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Lights")
	m := createTestMember(t, db, "Finn")
	task, _ := s.Create(ctx, p.ID, "Wire", "", &m.ID, nil)

	kept, _ := s.Update(ctx, task.ID, model.TaskPatch{SortOrder: ptr(9)})
	if kept.AssigneeID == nil || *kept.AssigneeID != m.ID {
		t.Errorf("assignee = %v, want %s", kept.AssigneeID, m.ID)
	}
	if kept.SortOrder != 9 {
		t.Errorf("sortOrder = %d, want 9", kept.SortOrder)
	}

	cleared, _ := s.Update(ctx, task.ID, model.TaskPatch{SetAssignee: true})
	if cleared.AssigneeID != nil {
		t.Errorf("assignee = %v, want nil", cleared.AssigneeID)
	}

	if got, err := s.Update(ctx, "missing", model.TaskPatch{Title: ptr("x")}); err != nil || got != nil {
		t.Errorf("update missing = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestTaskReorder(t *testing.T) {
	db := setupTestDB(t)
	s := NewTaskStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Basement")

	a, _ := s.Create(ctx, p.ID, "a", "", nil, nil)
	b, _ := s.Create(ctx, p.ID, "b", "", nil, nil)
	c, _ := s.Create(ctx, p.ID, "c", "", nil, nil)
	d, _ := s.Create(ctx, p.ID, "d", "", nil, ptr(10))

	projectID, err := s.Reorder(ctx, []string{c.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if projectID != p.ID {
		t.Errorf("projectID = %s, want %s", projectID, p.ID)
	}

	tasks, _ := s.ListByProject(ctx, p.ID)
	want := []struct {
		id    string
		order int
	}{{c.ID, 0}, {a.ID, 1}, {b.ID, 2}, {d.ID, 10}}
	if len(tasks) != len(want) {
		t.Fatalf("len = %d, want %d", len(tasks), len(want))
	}
	for i, w := range want {
		if tasks[i].ID != w.id || tasks[i].SortOrder != w.order {
			t.Errorf("tasks[%d] = %s@%d, want %s@%d", i, tasks[i].ID, tasks[i].SortOrder, w.id, w.order)
		}
	}
}

func TestTaskReorderPartialLeavesOthers(t *testing.T) {
	stepClock(t)
	db := setupTestDB(t)
	s := NewTaskStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Porch")

	a, _ := s.Create(ctx, p.ID, "a", "", nil, nil)
	b, _ := s.Create(ctx, p.ID, "b", "", nil, nil)
	c, _ := s.Create(ctx, p.ID, "c", "", nil, nil)
	d, _ := s.Create(ctx, p.ID, "d", "", nil, nil)

	if _, err := s.Reorder(ctx, []string{d.ID, c.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	// a and b keep 0 and 1; ties fall back to creation time.
	tasks, _ := s.ListByProject(ctx, p.ID)
	want := []struct {
		id    string
		order int
	}{{a.ID, 0}, {d.ID, 0}, {b.ID, 1}, {c.ID, 1}}
	if len(tasks) != len(want) {
		t.Fatalf("len = %d, want %d", len(tasks), len(want))
	}
	for i, w := range want {
		if tasks[i].ID != w.id || tasks[i].SortOrder != w.order {
			t.Errorf("tasks[%d] = %s@%d, want %s@%d", i, tasks[i].Title, tasks[i].SortOrder, w.id, w.order)
		}
	}
	if !tasks[0].UpdatedAt.Equal(a.UpdatedAt) {
		t.Errorf("unlisted task a updatedAt changed: %v -> %v", a.UpdatedAt, tasks[0].UpdatedAt)
	}
}

func TestTaskReorderInvalid(t *testing.T) {
	db := setupTestDB(t)
	s := NewTaskStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "One")
	q := createTestProject(t, db, "Two")

	a, _ := s.Create(ctx, p.ID, "a", "", nil, nil)
	b, _ := s.Create(ctx, p.ID, "b", "", nil, nil)
	x, _ := s.Create(ctx, q.ID, "x", "", nil, nil)

	tests := []struct {
		name string
		ids  []string
	}{
		{"empty", nil},
		{"duplicate", []string{a.ID, a.ID}},
		{"unknown", []string{a.ID, "missing"}},
		{"mixed projects", []string{b.ID, x.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Reorder(ctx, tt.ids)
			if !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("err = %v, want ErrInvalidOrder", err)
			}
		})
	}

	// Nothing was applied by the rejected calls.
	got, _ := s.GetByID(ctx, b.ID)
	if got.SortOrder != 1 {
		t.Errorf("b sortOrder = %d, want 1", got.SortOrder)
	}
}
