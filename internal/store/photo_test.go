package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/punchlist/internal/model"
)

func newTestPhoto(projectID, key string) model.Photo {
	return model.Photo{
		ProjectID: projectID,
		BlobKey:   key,
		Filename:  "before.png",
		MimeType:  "image/png",
		Size:      42,
		Checksum:  "abc123",
	}
}

func TestPhotoCRUD(t *testing.T) {
	db := setupTestDB(t)
	s := NewPhotoStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Patio")

	photo, err := s.Create(ctx, newTestPhoto(p.ID, p.ID+"/1-aaaaaa.png"))
	if err != nil {
		t.Fatalf("create photo: %v", err)
	}
	if photo.Size != 42 || photo.Checksum != "abc123" {
		t.Errorf("photo = %+v", photo)
	}
	if photo.Caption != nil {
		t.Errorf("caption = %v, want nil", photo.Caption)
	}

	captioned, err := s.Update(ctx, photo.ID, PhotoPatch{SetCaption: true, Caption: ptr("cracked slab")})
	if err != nil {
		t.Fatalf("update caption: %v", err)
	}
	if captioned.Caption == nil || *captioned.Caption != "cracked slab" {
		t.Errorf("caption = %v, want cracked slab", captioned.Caption)
	}
	if captioned.Filename != "before.png" {
		t.Errorf("filename = %q, want unchanged", captioned.Filename)
	}

	renamed, _ := s.Update(ctx, photo.ID, PhotoPatch{Filename: ptr("slab.png")})
	if renamed.Filename != "slab.png" || renamed.Caption == nil {
		t.Errorf("renamed = %+v, want filename changed and caption kept", renamed)
	}
	if renamed.BlobKey != photo.BlobKey {
		t.Errorf("blobKey changed: %q", renamed.BlobKey)
	}

	cleared, _ := s.Update(ctx, photo.ID, PhotoPatch{SetCaption: true})
	if cleared.Caption != nil {
		t.Errorf("caption = %v, want nil", cleared.Caption)
	}

	deleted, err := s.Delete(ctx, photo.ID)
	if err != nil {
		t.Fatalf("delete photo: %v", err)
	}
	if deleted == nil || deleted.BlobKey != photo.BlobKey {
		t.Fatalf("deleted = %+v, want blob key %q", deleted, photo.BlobKey)
	}
	if got, _ := s.GetByID(ctx, photo.ID); got != nil {
		t.Error("expected nil after delete")
	}
	if got, err := s.Update(ctx, photo.ID, PhotoPatch{Filename: ptr("x")}); err != nil || got != nil {
		t.Errorf("update missing = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestPhotoDuplicateKey(t *testing.T) {
	db := setupTestDB(t)
	s := NewPhotoStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Roof")

	if _, err := s.Create(ctx, newTestPhoto(p.ID, "same")); err != nil {
		t.Fatalf("create photo: %v", err)
	}
	_, err := s.Create(ctx, newTestPhoto(p.ID, "same"))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestPhotoListAndKeys(t *testing.T) {
	stepClock(t)
	db := setupTestDB(t)
	s := NewPhotoStore(db)
	ctx := context.Background()
	p := createTestProject(t, db, "Hall")
	other := createTestProject(t, db, "Stairs")

	older, _ := s.Create(ctx, newTestPhoto(p.ID, "k1"))
	newer, _ := s.Create(ctx, newTestPhoto(p.ID, "k2"))
	s.Create(ctx, newTestPhoto(other.ID, "k3"))

	photos, err := s.ListByProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("list photos: %v", err)
	}
	if len(photos) != 2 || photos[0].ID != newer.ID || photos[1].ID != older.ID {
		t.Errorf("photos = %+v, want newest first", photos)
	}

	keys, err := s.BlobKeys(ctx, p.ID)
	if err != nil {
		t.Fatalf("blob keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v, want 2", keys)
	}
}
