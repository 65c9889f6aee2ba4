package model

import (
	"strings"
	"time"
)

type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeTagName trims and lowercases a tag name before storage.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
