// Package docstore defines the transactional document store the marketplace
// core is written against. Implementations must provide get-by-id reads,
// collection scans, and atomic multi-document transactions in which every
// read precedes every write and conflicting commits abort.
package docstore

import (
	"context"
	"errors"
)

// Collection names shared by all store implementations.
const (
	CollectionProducts = "products"
	CollectionOrders   = "orders"
	CollectionReviews  = "reviews"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when a transaction lost a race with a
	// concurrent commit. Nothing was written; the call is safe to retry.
	ErrConflict = errors.New("docstore: transaction conflict")
	// ErrReadAfterWrite is returned when a transaction issues a read after
	// its first buffered write. The store contract requires all reads to
	// happen before any write.
	ErrReadAfterWrite = errors.New("docstore: read after write in transaction")
)

// Key addresses a single document.
type Key struct {
	Collection string
	ID         string
}

// Tx is the handle passed to a transaction function. Writes are buffered and
// applied atomically when the function returns nil. Returning an error from
// the function aborts the transaction without side effects.
type Tx interface {
	// Get reads a document into out. Every Get must happen before the first
	// Set or Delete; violating this returns ErrReadAfterWrite. A Get of a
	// missing document returns ErrNotFound but still participates in
	// conflict detection.
	Get(key Key, out any) error
	// Set buffers a full-document write.
	Set(key Key, doc any)
	// Delete buffers a document removal.
	Delete(key Key)
}

// Store is the document store handle injected into the application services.
type Store interface {
	// Get reads a single document outside any transaction.
	Get(ctx context.Context, key Key, out any) error
	// List invokes each for every raw document in a collection. Iteration
	// order is unspecified; callers sort after decoding.
	List(ctx context.Context, collection string, each func(raw []byte) error) error
	// RunTransaction executes fn atomically. The store may re-run fn on
	// optimistic conflicts before giving up with ErrConflict, so fn must be
	// safe to call more than once.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}
