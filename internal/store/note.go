package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/punchlist/internal/model"
)

type NoteStore struct {
	db *sql.DB
}

func NewNoteStore(db *sql.DB) *NoteStore {
	return &NoteStore{db: db}
}

const noteViewSelect = `SELECT n.id, n.project_id, n.task_id, n.content, n.author_id, n.created_at, n.updated_at,
	m.id, m.name, m.initials, m.color
	FROM notes n
	LEFT JOIN members m ON m.id = n.author_id`

// scanNoteView assembles a note and its author's display fields from one
// joined row.
func scanNoteView(sc scanner) (*model.NoteView, error) {
	var v model.NoteView
	var projectID, taskID, authorID sql.NullString
	var mID, mName, mInitials, mColor sql.NullString

	err := sc.Scan(
		&v.ID, &projectID, &taskID, &v.Content, &authorID, &v.CreatedAt, &v.UpdatedAt,
		&mID, &mName, &mInitials, &mColor,
	)
	if err != nil {
		return nil, err
	}

	v.ProjectID = stringPtr(projectID)
	v.TaskID = stringPtr(taskID)
	v.AuthorID = stringPtr(authorID)
	if mID.Valid {
		v.Author = &model.MemberSummary{ID: mID.String, Name: mName.String, Initials: mInitials.String, Color: mColor.String}
	}
	return &v, nil
}

func (s *NoteStore) Create(ctx context.Context, projectID, taskID *string, content string, authorID *string) (*model.NoteView, error) {
	id := newID()
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, project_id, task_id, content, author_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(projectID), nullString(taskID), content, nullString(authorID), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", classify(err))
	}
	return s.GetByID(ctx, id)
}

func (s *NoteStore) GetByID(ctx context.Context, id string) (*model.NoteView, error) {
	v, err := scanNoteView(s.db.QueryRowContext(ctx, noteViewSelect+` WHERE n.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return v, nil
}

// List returns notes attached to the project or to the task, oldest first.
// When both ids are given a note matching either one is returned. At least
// one id must be non-empty.
func (s *NoteStore) List(ctx context.Context, projectID, taskID string) ([]model.NoteView, error) {
	var conds []string
	var args []any
	if projectID != "" {
		conds = append(conds, "n.project_id = ?")
		args = append(args, projectID)
	}
	if taskID != "" {
		conds = append(conds, "n.task_id = ?")
		args = append(args, taskID)
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("list notes: projectId or taskId required")
	}

	rows, err := s.db.QueryContext(ctx,
		noteViewSelect+` WHERE `+strings.Join(conds, " OR ")+` ORDER BY n.created_at ASC, n.rowid ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []model.NoteView
	for rows.Next() {
		v, err := scanNoteView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *v)
	}
	return notes, rows.Err()
}

// UpdateContent replaces the note body and bumps updated_at. It returns nil
// when the note does not exist.
func (s *NoteStore) UpdateContent(ctx context.Context, id, content string) (*model.NoteView, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notes SET content = ?, updated_at = ? WHERE id = ?`, content, now(), id)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

func (s *NoteStore) Delete(ctx context.Context, id string) (*model.NoteView, error) {
	v, err := s.GetByID(ctx, id)
	if err != nil || v == nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete note: %w", err)
	}
	return v, nil
}
