// Package blob stores photo bytes by key, outside the relational store.
package blob

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"
)

// ErrNotFound is returned by Get when no object is stored under the key.
var ErrNotFound = errors.New("blob not found")

// Meta is the side-channel kept next to each object. The photos table holds
// the authoritative copy of both fields.
type Meta struct {
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}

type Object struct {
	Data []byte
	Meta
}

// Store is implemented by the S3, filesystem and in-memory backends.
type Store interface {
	Put(ctx context.Context, key string, data []byte, meta Meta) error
	Get(ctx context.Context, key string) (*Object, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

const keyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewKey returns a fresh object key of the form
// {projectID}/{unixMillis}-{6 random [a-z0-9]}.{ext}. The extension comes
// from the filename, or from the MIME type when the filename has none.
func NewKey(projectID, filename, mimeType string) (string, error) {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate key suffix: %w", err)
	}
	for i, b := range suffix {
		suffix[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}

	key := fmt.Sprintf("%s/%d-%s", projectID, time.Now().UnixMilli(), suffix)
	if ext := keyExt(filename, mimeType); ext != "" {
		key += "." + ext
	}
	return key, nil
}

func keyExt(filename, mimeType string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext != "" && !strings.ContainsAny(ext, `/\ `) {
		return ext
	}
	if m := mimetype.Lookup(mimeType); m != nil {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return ""
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
