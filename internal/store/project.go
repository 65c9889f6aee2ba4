package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/punchlist/internal/model"
)

type ProjectStore struct {
	db *sql.DB
}

func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

const projectCols = `id, title, description, type, status, priority, owner_id, implementer_id,
	target_date, estimated_budget, actual_budget, created_at, updated_at, completed_at`

func scanProject(sc scanner) (*model.Project, error) {
	var p model.Project
	var description, priority, ownerID, implementerID, targetDate sql.NullString
	var estimated, actual sql.NullInt64
	var completedAt sql.NullTime

	err := sc.Scan(
		&p.ID, &p.Title, &description, &p.Type, &p.Status, &priority, &ownerID, &implementerID,
		&targetDate, &estimated, &actual, &p.CreatedAt, &p.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Description = stringPtr(description)
	p.Priority = stringPtr(priority)
	p.OwnerID = stringPtr(ownerID)
	p.ImplementerID = stringPtr(implementerID)
	p.TargetDate = stringPtr(targetDate)
	p.EstimatedBudget = int64Ptr(estimated)
	p.ActualBudget = int64Ptr(actual)
	p.CompletedAt = timePtr(completedAt)
	return &p, nil
}

// Create inserts a project. The id and timestamps are assigned here; an empty
// status defaults to not_started, and a project created as completed is
// stamped immediately.
func (s *ProjectStore) Create(ctx context.Context, p model.Project) (*model.Project, error) {
	p.ID = newID()
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	if p.Status == "" {
		p.Status = model.ProjectStatusNotStarted
	}
	p.CompletedAt = model.ProjectCompletedAt("", p.Status, nil, ts)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, nullString(p.Description), p.Type, p.Status, nullString(p.Priority),
		nullString(p.OwnerID), nullString(p.ImplementerID), nullString(p.TargetDate),
		nullInt64(p.EstimatedBudget), nullInt64(p.ActualBudget), p.CreatedAt, p.UpdatedAt, nullTime(p.CompletedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", classify(err))
	}
	return s.GetByID(ctx, p.ID)
}

func (s *ProjectStore) GetByID(ctx context.Context, id string) (*model.Project, error) {
	return getProject(ctx, s.db, id)
}

func getProject(ctx context.Context, q dbtx, id string) (*model.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// Exists reports whether a project with the given id is stored.
func (s *ProjectStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check project: %w", err)
	}
	return n > 0, nil
}

// List returns projects newest first, narrowed by the optional filter.
func (s *ProjectStore) List(ctx context.Context, f model.ProjectFilter) ([]model.Project, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}

	query := `SELECT ` + projectCols + ` FROM projects`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Update writes every editable column of p, including CompletedAt as given,
// and bumps updated_at. It returns nil when the project does not exist.
func (s *ProjectStore) Update(ctx context.Context, p model.Project) (*model.Project, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET title = ?, description = ?, type = ?, status = ?, priority = ?,
		   owner_id = ?, implementer_id = ?, target_date = ?, estimated_budget = ?, actual_budget = ?,
		   completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		p.Title, nullString(p.Description), p.Type, p.Status, nullString(p.Priority),
		nullString(p.OwnerID), nullString(p.ImplementerID), nullString(p.TargetDate),
		nullInt64(p.EstimatedBudget), nullInt64(p.ActualBudget), nullTime(p.CompletedAt), now(), p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, p.ID)
}

// SetTags replaces the project's tag links with tagIDs. The delete and the
// inserts commit together.
func (s *ProjectStore) SetTags(ctx context.Context, projectID string, tagIDs []string) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_tags WHERE project_id = ?`, projectID); err != nil {
			return fmt.Errorf("delete project tags: %w", err)
		}
		for _, tagID := range tagIDs {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO project_tags (project_id, tag_id) VALUES (?, ?)`,
				projectID, tagID,
			)
			if err != nil {
				return fmt.Errorf("insert project tag %s: %w", tagID, classify(err))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set project tags: %w", err)
	}
	return nil
}

// Delete unlinks the project's tags, deletes its tasks, then deletes the
// project row, all in one transaction. It returns the deleted project, or nil
// if it did not exist.
func (s *ProjectStore) Delete(ctx context.Context, id string) (*model.Project, error) {
	var deleted *model.Project
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := getProject(ctx, tx, id)
		if err != nil || p == nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_tags WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("delete project tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("delete project tasks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete project row: %w", err)
		}
		deleted = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete project: %w", err)
	}
	return deleted, nil
}
