package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/punchlist/internal/model"
)

// ErrInvalidOrder is returned by Reorder when the id list cannot be applied.
var ErrInvalidOrder = errors.New("invalid task order")

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, project_id, title, status, assignee_id, sort_order, created_at, updated_at, completed_at`

func scanTask(sc scanner) (*model.Task, error) {
	var t model.Task
	var assigneeID sql.NullString
	var completedAt sql.NullTime

	err := sc.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Status, &assigneeID, &t.SortOrder,
		&t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	t.AssigneeID = stringPtr(assigneeID)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}

// NextSortOrder returns one more than the highest sort order among the
// project's tasks, or 0 for a project without tasks.
func (s *TaskStore) NextSortOrder(ctx context.Context, projectID string) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM tasks WHERE project_id = ?`, projectID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("query max sort_order: %w", err)
	}
	return next, nil
}

// Create inserts a task. A nil sortOrder appends the task after its siblings.
func (s *TaskStore) Create(ctx context.Context, projectID, title, status string, assigneeID *string, sortOrder *int) (*model.Task, error) {
	if status == "" {
		status = model.TaskStatusTodo
	}

	order := 0
	if sortOrder != nil {
		order = *sortOrder
	} else {
		next, err := s.NextSortOrder(ctx, projectID)
		if err != nil {
			return nil, err
		}
		order = next
	}

	id := newID()
	ts := now()
	var done sql.NullTime
	if status == model.TaskStatusDone {
		done = sql.NullTime{Time: ts, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, projectID, title, status, nullString(assigneeID), order, ts, ts, done,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", classify(err))
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListByProject returns a project's tasks by sort order, then creation time.
func (s *TaskStore) ListByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE project_id = ? ORDER BY sort_order ASC, created_at ASC, rowid ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update writes only the fields present in the patch. A supplied status
// always rewrites completed_at: now for done, NULL for anything else. The
// prior status is not consulted. It returns nil when the task does not exist.
func (s *TaskStore) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	ts := now()
	sets := []string{"updated_at = ?"}
	args := []any{ts}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?", "completed_at = ?")
		var done sql.NullTime
		if *patch.Status == model.TaskStatusDone {
			done = sql.NullTime{Time: ts, Valid: true}
		}
		args = append(args, *patch.Status, done)
	}
	if patch.SetAssignee {
		sets = append(sets, "assignee_id = ?")
		args = append(args, nullString(patch.AssigneeID))
	}
	if patch.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *patch.SortOrder)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// Delete removes the task and returns it, or nil if absent.
func (s *TaskStore) Delete(ctx context.Context, id string) (*model.Task, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	return t, nil
}

// Reorder sets each task's sort order to its index in ids. Every id must
// exist and all of them must belong to the same project; tasks of that
// project that are not listed keep their sort order. It returns the id of
// the project whose tasks were reordered.
func (s *TaskStore) Reorder(ctx context.Context, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no task ids", ErrInvalidOrder)
	}

	var projectID string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				return fmt.Errorf("%w: task %s listed twice", ErrInvalidOrder, id)
			}
			seen[id] = true

			var pid string
			err := tx.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ?`, id).Scan(&pid)
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: task %s not found", ErrInvalidOrder, id)
			}
			if err != nil {
				return fmt.Errorf("query task project: %w", err)
			}
			if projectID == "" {
				projectID = pid
			} else if pid != projectID {
				return fmt.Errorf("%w: tasks belong to different projects", ErrInvalidOrder)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `UPDATE tasks SET sort_order = ?, updated_at = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare stmt: %w", err)
		}
		defer stmt.Close()

		ts := now()
		for i, id := range ids {
			if _, err := stmt.ExecContext(ctx, i, ts, id); err != nil {
				return fmt.Errorf("update sort order for id %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reorder tasks: %w", err)
	}
	return projectID, nil
}
