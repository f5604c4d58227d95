// Package docstore provides the keyed-collection document store the rest of
// the system persists through. Two implementations exist: an in-memory store
// for tests and a PostgreSQL JSONB store for production.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrAborted can be returned from an Update mutate function to leave the
	// document untouched without reporting an error to the caller.
	ErrAborted = errors.New("update aborted")
)

// Raw is one listed document.
type Raw struct {
	ID   string
	Data []byte
}

// MutateFunc transforms the current document bytes (nil when the document is
// absent) into the new document bytes. Returning ErrAborted cancels the write.
type MutateFunc func(current []byte) ([]byte, error)

// Store is the document store contract. All writes are last-write-wins except
// Update, which is an atomic read-modify-write on a single document.
type Store interface {
	// Get unmarshals the document into out. Returns ErrNotFound when absent.
	Get(ctx context.Context, collection, id string, out any) error

	// Save upserts the document.
	Save(ctx context.Context, collection, id string, doc any) error

	// Delete removes the document. Deleting a missing document is a no-op.
	Delete(ctx context.Context, collection, id string) error

	// List returns all documents in a collection.
	List(ctx context.Context, collection string) ([]Raw, error)

	// Update atomically applies mutate to the document.
	Update(ctx context.Context, collection, id string, mutate MutateFunc) error

	// Append adds an entry to an append-only collection and returns its id.
	Append(ctx context.Context, collection string, doc any) (string, error)

	// AppendedEntries returns up to limit most recent append-only entries.
	AppendedEntries(ctx context.Context, collection string, limit int) ([]Raw, error)
}

// GetTyped is a generic convenience wrapper over Store.Get.
func GetTyped[T any](ctx context.Context, s Store, collection, id string) (*T, error) {
	var out T
	if err := s.Get(ctx, collection, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTyped runs a typed read-modify-write. When the document is absent,
// mutate receives the zero value and created=false.
func UpdateTyped[T any](ctx context.Context, s Store, collection, id string, mutate func(doc *T, exists bool) error) error {
	return s.Update(ctx, collection, id, func(current []byte) ([]byte, error) {
		var doc T
		exists := current != nil
		if exists {
			if err := json.Unmarshal(current, &doc); err != nil {
				return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
			}
		}
		if err := mutate(&doc, exists); err != nil {
			return nil, err
		}
		return json.Marshal(&doc)
	})
}
