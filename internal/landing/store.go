// Package landing archives raw API payloads before they are loaded into the warehouse.
package landing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver identifies a landing store backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory" // tests
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("landing: object not found")

// Info describes a stored payload.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is a write-once object store keyed by slash-separated paths.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// BreedsKey returns the archive key for one extraction: breeds/YYYY/MM/DD/<load_id>.json.
func BreedsKey(at time.Time, loadID string) string {
	at = at.UTC()
	return path.Join("breeds", at.Format("2006"), at.Format("01"), at.Format("02"), loadID+".json")
}

// sanitizeKey rejects keys that could escape the store root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	return path.Clean(key), nil
}
