package store

import (
	"context"
	"errors"
	"time"
)

// ErrNil is returned by reads of a missing key or hash field.
var ErrNil = errors.New("store: nil")

// Store is the shared transactional key/value store backing room state.
// Reads go straight to the backend; every multi-key write is queued on a
// Batch and applied all-or-nothing by Atomic.
type Store interface {
	// Get returns the string value at key, or ErrNil.
	Get(ctx context.Context, key string) (string, error)

	// HGet returns one hash field, or ErrNil.
	HGet(ctx context.Context, key, field string) (string, error)

	// HGetAll returns every field of a hash. A missing hash is empty.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HLen returns the number of fields in a hash.
	HLen(ctx context.Context, key string) (int64, error)

	// SMembers returns the members of a set.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SRem removes members from a set outside of a batch.
	SRem(ctx context.Context, key string, members ...string) error

	// Atomic queues the writes issued by fn and applies them in one
	// MULTI/EXEC transaction. Nothing is applied if fn returns an error.
	Atomic(ctx context.Context, fn func(b Batch) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Batch collects writes for Store.Atomic.
type Batch interface {
	// Set stores value at key. A zero ttl means no expiry.
	Set(key, value string, ttl time.Duration)
	Del(keys ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	HSet(key, field, value string)
	HDel(key string, fields ...string)
}
