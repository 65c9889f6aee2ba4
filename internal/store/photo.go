package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/punchlist/internal/model"
)

type PhotoStore struct {
	db *sql.DB
}

func NewPhotoStore(db *sql.DB) *PhotoStore {
	return &PhotoStore{db: db}
}

// PhotoPatch holds a partial metadata edit. SetCaption with a nil Caption
// clears the caption.
type PhotoPatch struct {
	SetCaption bool
	Caption    *string
	Filename   *string
}

const photoCols = `id, project_id, blob_key, filename, caption, mime_type, size, checksum, uploaded_by_id, created_at`

func scanPhoto(sc scanner) (*model.Photo, error) {
	var p model.Photo
	var caption, uploadedBy sql.NullString
	err := sc.Scan(&p.ID, &p.ProjectID, &p.BlobKey, &p.Filename, &caption, &p.MimeType, &p.Size,
		&p.Checksum, &uploadedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Caption = stringPtr(caption)
	p.UploadedByID = stringPtr(uploadedBy)
	return &p, nil
}

// Create inserts photo metadata. The blob itself must already be stored
// under p.BlobKey.
func (s *PhotoStore) Create(ctx context.Context, p model.Photo) (*model.Photo, error) {
	p.ID = newID()
	p.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO photos (`+photoCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProjectID, p.BlobKey, p.Filename, nullString(p.Caption), p.MimeType, p.Size,
		p.Checksum, nullString(p.UploadedByID), p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert photo: %w", classify(err))
	}
	return s.GetByID(ctx, p.ID)
}

func (s *PhotoStore) GetByID(ctx context.Context, id string) (*model.Photo, error) {
	p, err := scanPhoto(s.db.QueryRowContext(ctx, `SELECT `+photoCols+` FROM photos WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

// ListByProject returns a project's photos, newest first.
func (s *PhotoStore) ListByProject(ctx context.Context, projectID string) ([]model.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoCols+` FROM photos WHERE project_id = ? ORDER BY created_at DESC, rowid DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []model.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// BlobKeys returns the blob keys of every photo attached to the project.
func (s *PhotoStore) BlobKeys(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT blob_key FROM photos WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list photo keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan photo key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Update applies a metadata patch. It never touches the blob. It returns nil
// when the photo does not exist.
func (s *PhotoStore) Update(ctx context.Context, id string, patch PhotoPatch) (*model.Photo, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}
	if patch.SetCaption {
		existing.Caption = patch.Caption
	}
	if patch.Filename != nil {
		existing.Filename = *patch.Filename
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE photos SET caption = ?, filename = ? WHERE id = ?`,
		nullString(existing.Caption), existing.Filename, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update photo: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the metadata row and returns it, or nil if absent.
func (s *PhotoStore) Delete(ctx context.Context, id string) (*model.Photo, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete photo: %w", err)
	}
	return p, nil
}
