package catalog

import "context"

// Repository is the backing store for resources. Each call is expected to be
// safe for concurrent use on its own; compound check-then-act sequences are
// never assumed atomic.
type Repository interface {
	// Create persists a new resource built from item and returns the stored snapshot
	Create(ctx context.Context, item Item) (*Resource, error)

	// Find returns the resource with the given ID, or an error wrapping
	// util.ErrResourceNotFound
	Find(ctx context.Context, id int64) (*Resource, error)

	// Update replaces the stored resource with the same ID
	Update(ctx context.Context, r Resource) error

	// Delete removes the resource with the given ID
	Delete(ctx context.Context, id int64) error

	// List returns every stored resource ordered by ID
	List(ctx context.Context) ([]Resource, error)
}

// BatchUpdater is implemented by repositories that can apply several updates
// in a single transaction
type BatchUpdater interface {
	UpdateBatch(ctx context.Context, resources []Resource) error
}
