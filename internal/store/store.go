package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent and by LPop when
// the list is empty.
var ErrNotFound = errors.New("store: key not found")

// KV is the minimal key/value contract shared by the matchmaking queue and
// the room registry. Every operation is atomic with respect to concurrent
// callers; implementations mirror Redis list and string command semantics.
type KV interface {
	// RPush appends value to the list stored at key, creating it if needed.
	RPush(ctx context.Context, key, value string) error
	// LPop removes and returns the head of the list at key.
	LPop(ctx context.Context, key string) (string, error)
	// Set stores a string value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Get returns the string value stored under key.
	Get(ctx context.Context, key string) (string, error)
	// Del removes key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error
}
