package kv

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by Set when the backing medium refuses the
// write for capacity reasons. Callers decide whether to retry with a
// smaller payload.
var ErrQuotaExceeded = errors.New("kv: storage quota exceeded")

// Store is the durable key-value collaborator: single string blob per key,
// whole-value writes only. Implementations must make Set atomic from the
// caller's perspective (no partially written values survive a crash).
type Store interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set replaces the value in full. Returns ErrQuotaExceeded when the
	// medium is out of capacity.
	Set(ctx context.Context, key, value string) error

	Delete(ctx context.Context, key string) error
}
