package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/punchlist/internal/model"
)

// ActivityStore is append-only: activities are never updated or deleted.
type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

const activityViewSelect = `SELECT a.id, a.action, a.entity_type, a.entity_id, a.entity_title, a.project_id,
	a.actor_id, a.metadata, a.created_at,
	m.id, m.name, m.initials, m.color,
	p.id, p.title
	FROM activities a
	LEFT JOIN members m ON m.id = a.actor_id
	LEFT JOIN projects p ON p.id = a.project_id`

func scanActivityView(sc scanner) (*model.ActivityView, error) {
	var v model.ActivityView
	var entityID, entityTitle, projectID, actorID, metadata sql.NullString
	var mID, mName, mInitials, mColor sql.NullString
	var pID, pTitle sql.NullString

	err := sc.Scan(
		&v.ID, &v.Action, &v.EntityType, &entityID, &entityTitle, &projectID,
		&actorID, &metadata, &v.CreatedAt,
		&mID, &mName, &mInitials, &mColor,
		&pID, &pTitle,
	)
	if err != nil {
		return nil, err
	}

	v.EntityID = stringPtr(entityID)
	v.EntityTitle = stringPtr(entityTitle)
	v.ProjectID = stringPtr(projectID)
	v.ActorID = stringPtr(actorID)
	if metadata.Valid && json.Valid([]byte(metadata.String)) {
		v.Metadata = json.RawMessage(metadata.String)
	}
	if mID.Valid {
		v.Actor = &model.MemberSummary{ID: mID.String, Name: mName.String, Initials: mInitials.String, Color: mColor.String}
	}
	if pID.Valid {
		v.Project = &model.ProjectSummary{ID: pID.String, Title: pTitle.String}
	}
	return &v, nil
}

// Create appends an activity. Metadata, when present, is stored as its JSON
// text and parsed back out on read.
func (s *ActivityStore) Create(ctx context.Context, a model.Activity) (*model.ActivityView, error) {
	a.ID = newID()
	a.CreatedAt = now()

	var metadata sql.NullString
	if len(a.Metadata) > 0 && string(a.Metadata) != "null" {
		metadata = sql.NullString{String: string(a.Metadata), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, action, entity_type, entity_id, entity_title, project_id, actor_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Action, a.EntityType, nullString(a.EntityID), nullString(a.EntityTitle),
		nullString(a.ProjectID), nullString(a.ActorID), metadata, a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", classify(err))
	}
	return s.GetByID(ctx, a.ID)
}

func (s *ActivityStore) GetByID(ctx context.Context, id string) (*model.ActivityView, error) {
	v, err := scanActivityView(s.db.QueryRowContext(ctx, activityViewSelect+` WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return v, nil
}

// List returns the newest activities first, at most limit of them, optionally
// restricted to one project.
func (s *ActivityStore) List(ctx context.Context, limit int, projectID string) ([]model.ActivityView, error) {
	query := activityViewSelect
	var args []any
	if projectID != "" {
		query += ` WHERE a.project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY a.created_at DESC, a.rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.ActivityView
	for rows.Next() {
		v, err := scanActivityView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *v)
	}
	return activities, rows.Err()
}
