package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned by Read for a missing key.
var ErrNotFound = errors.New("object not found")

// Storage is a flat object store addressed by slash-separated keys.
type Storage interface {
	// Write stores content from the reader with the given key, replacing any
	// existing object. size is -1 when unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key.
	// The caller is responsible for closing the returned ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if content with the given key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns the keys starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Drivers supported by New.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// Config selects and configures a storage backend.
type Config struct {
	Driver string      `mapstructure:"driver"`
	Local  LocalConfig `mapstructure:"local"`
	S3     S3Config    `mapstructure:"s3"`
}

// New creates the storage backend named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case DriverLocal, "":
		return NewLocalStorage(cfg.Local)
	case DriverS3:
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
