package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/punchlist/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, name, type, initials, color, created_at, updated_at`

func scanMember(sc scanner) (*model.Member, error) {
	var m model.Member
	if err := sc.Scan(&m.ID, &m.Name, &m.Type, &m.Initials, &m.Color, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) Create(ctx context.Context, name, memberType, initials, color string) (*model.Member, error) {
	id := newID()
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, name, type, initials, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, memberType, initials, color, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", classify(err))
	}
	return s.GetByID(ctx, id)
}

// List returns all members ordered by name.
func (s *MemberStore) List(ctx context.Context) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberCols+` FROM members ORDER BY name COLLATE NOCASE, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) GetByID(ctx context.Context, id string) (*model.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return m, nil
}

// Exists reports whether a member with the given id is stored.
func (s *MemberStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return n > 0, nil
}

// Update replaces the editable fields. It returns nil when the member does not exist.
func (s *MemberStore) Update(ctx context.Context, id, name, memberType, initials, color string) (*model.Member, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, type = ?, initials = ?, color = ?, updated_at = ? WHERE id = ?`,
		name, memberType, initials, color, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// Delete removes the member and returns the deleted row, or nil if absent.
// References from projects, tasks, notes, photos and activities are nulled
// by the schema.
func (s *MemberStore) Delete(ctx context.Context, id string) (*model.Member, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil || m == nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete member: %w", err)
	}
	return m, nil
}
