package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/punchlist/internal/model"
)

type TagStore struct {
	db *sql.DB
}

func NewTagStore(db *sql.DB) *TagStore {
	return &TagStore{db: db}
}

// Create stores a tag under its normalized name. A name that already exists
// yields an error wrapping ErrConflict.
func (s *TagStore) Create(ctx context.Context, name string) (*model.Tag, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)`,
		id, model.NormalizeTagName(name), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", classify(err))
	}
	return s.GetByID(ctx, id)
}

func (s *TagStore) GetByID(ctx context.Context, id string) (*model.Tag, error) {
	var t model.Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM tags WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

// GetByName looks a tag up by its normalized name.
func (s *TagStore) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	var t model.Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM tags WHERE name = ?`, model.NormalizeTagName(name)).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag by name: %w", err)
	}
	return &t, nil
}

func (s *TagStore) List(ctx context.Context) ([]model.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// Missing returns the ids from the list that do not name a stored tag.
func (s *TagStore) Missing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tags WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("check tags: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tag id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ForProjects resolves the tags linked to each of the given projects in one
// query. Projects without tags are absent from the map.
func (s *TagStore) ForProjects(ctx context.Context, projectIDs []string) (map[string][]model.Tag, error) {
	result := make(map[string][]model.Tag)
	if len(projectIDs) == 0 {
		return result, nil
	}
	args := make([]any, len(projectIDs))
	for i, id := range projectIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT pt.project_id, t.id, t.name, t.created_at
		 FROM project_tags pt
		 JOIN tags t ON t.id = pt.tag_id
		 WHERE pt.project_id IN (`+placeholders(len(projectIDs))+`)
		 ORDER BY t.name ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query project tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var projectID string
		var t model.Tag
		if err := rows.Scan(&projectID, &t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project tag: %w", err)
		}
		result[projectID] = append(result[projectID], t)
	}
	return result, rows.Err()
}
