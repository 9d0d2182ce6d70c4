// Package storage provides the backends run logs are archived to.
package storage

import (
	"context"
	"io"
	"time"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
)

// Backend defines the interface for storage backends
type Backend interface {
	// Upload stores data under key, replacing any existing object
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object; a missing key yields ErrObjectNotFound
	Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Delete deletes an object; deleting a missing object is not an error
	Delete(ctx context.Context, key string) error

	// List lists objects with the given prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Ping checks if the storage is accessible
	Ping(ctx context.Context) error

	// Type returns the storage backend type
	Type() string

	// Location returns a human-readable location description
	Location() string
}

// Preparer is implemented by backends that must create their container
// before the first upload
type Preparer interface {
	EnsureBucket(ctx context.Context) error
}

// Prepare readies b for uploads
func Prepare(ctx context.Context, b Backend) error {
	if p, ok := b.(Preparer); ok {
		return p.EnsureBucket(ctx)
	}
	return nil
}

// ObjectInfo holds metadata about a storage object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Config holds the storage configuration
type Config struct {
	// Type is the storage backend type: "s3" or "local"
	Type string

	// Local storage configuration
	Local LocalConfig

	// S3 storage configuration
	S3 S3Config
}

// DefaultConfig returns a default storage configuration (local filesystem)
func DefaultConfig() Config {
	return Config{
		Type: "local",
		Local: LocalConfig{
			BasePath: "~/.local/share/lkt/archive",
		},
	}
}

// New creates a new storage backend based on configuration
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(cfg.S3)
	case "local", "":
		return NewLocal(cfg.Local)
	default:
		return nil, lkterrors.ErrStorageUnavailable.WithMessagef("unknown storage type %q (supported: local, s3)", cfg.Type)
	}
}

func notFound(key string) error {
	return lkterrors.ErrObjectNotFound.WithMessagef("object not found: %s", key)
}
