// Package docstore abstracts the document store the hypergraph persists
// into: a generic keyed collection supporting conditional create,
// merge-update, and batched writes with a bounded batch size. Production
// deployments back it with a managed document database; the in-memory
// implementation here serves tests and single-process use.
package docstore

import (
	"context"
	"errors"
)

// MaxBatchOps is the largest number of operations accepted in one batch,
// matching the bound of the backing document service.
const MaxBatchOps = 500

var (
	// ErrExists is returned by conditional creates when the key is taken.
	ErrExists = errors.New("document already exists")

	// ErrNotFound is returned when a key has no document.
	ErrNotFound = errors.New("document not found")

	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchOps.
	ErrBatchTooLarge = errors.New("batch exceeds maximum operation count")
)

// OpKind selects the write performed by a batch operation.
type OpKind string

const (
	OpPut    OpKind = "put"
	OpCreate OpKind = "create"
	OpMerge  OpKind = "merge"
	OpDelete OpKind = "delete"
)

// Op is one write in a batch.
type Op struct {
	Kind       OpKind
	Collection string
	Key        string
	Value      []byte
}

// Store is a keyed collection of JSON documents.
type Store interface {
	// Get returns the document at key, or ErrNotFound.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Put unconditionally writes the document at key.
	Put(ctx context.Context, collection, key string, value []byte) error

	// Create writes the document only if the key is vacant, else ErrExists.
	Create(ctx context.Context, collection, key string, value []byte) error

	// Merge shallow-merges the JSON object patch into the existing
	// document, creating it when absent.
	Merge(ctx context.Context, collection, key string, patch []byte) error

	// Delete removes the document at key. Missing keys are not an error.
	Delete(ctx context.Context, collection, key string) error

	// Batch applies the operations atomically with respect to readers.
	// Batches larger than MaxBatchOps fail with ErrBatchTooLarge.
	Batch(ctx context.Context, ops []Op) error

	// Scan visits every document in the collection in ascending key order.
	// Returning a non-nil error from fn stops the scan and propagates it.
	Scan(ctx context.Context, collection string, fn func(key string, value []byte) error) error

	// Close releases backing resources.
	Close() error
}
