package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const metaSuffix = ".meta.json"

// FileStore keeps each object as a file under a root directory, with its Meta
// in a JSON sidecar next to it.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, rel), nil
}

func (s *FileStore) Put(_ context.Context, key string, data []byte, meta Meta) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	sidecar, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal blob meta: %w", err)
	}
	if err := writeFileAtomic(p+metaSuffix, sidecar); err != nil {
		return fmt.Errorf("write blob meta: %w", err)
	}
	if err := writeFileAtomic(p, data); err != nil {
		os.Remove(p + metaSuffix)
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	obj := &Object{Data: data}
	// A missing or unreadable sidecar only loses the side-channel.
	if raw, err := os.ReadFile(p + metaSuffix); err == nil {
		json.Unmarshal(raw, &obj.Meta)
	}
	return obj, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	for _, name := range []string{p, p + metaSuffix} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete blob: %w", err)
		}
	}
	return nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it into place.
func writeFileAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}
