// Package kv defines the key/value storage layer that every other
// taskplane component is built on.
package kv

import (
	"context"
	"errors"
)

// ErrEmpty is returned by DequeueFront when the queue holds no elements.
var ErrEmpty = errors.New("queue is empty")

// Store is a record/list store. Records are flat string field maps addressed
// by key; queues are ordered lists of strings addressed by a separate key.
// Implementations must make DequeueFront atomic: no two concurrent callers
// against the same queue may observe the same element.
type Store interface {
	// Put merges fields into the record at key, creating it if absent.
	Put(ctx context.Context, key string, fields map[string]string) error

	// GetAll returns every field of the record at key.
	// An absent record yields an empty, non-nil map.
	GetAll(ctx context.Context, key string) (map[string]string, error)

	// DequeueFront removes and returns the first element of the queue.
	// Returns ErrEmpty if the queue is empty or does not exist.
	DequeueFront(ctx context.Context, queueKey string) (string, error)

	// EnqueueBack appends value to the queue.
	EnqueueBack(ctx context.Context, queueKey string, value string) error

	// ScanKeys returns the keys of all records whose key begins with prefix.
	// Each key appears once. Order is unspecified.
	ScanKeys(ctx context.Context, prefix string) ([]string, error)

	// Len returns the number of elements in the queue.
	Len(ctx context.Context, queueKey string) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
