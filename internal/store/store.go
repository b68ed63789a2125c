package store

import (
	"context"

	"github.com/jacklau/mvsdump/internal/catalog"
)

// Store defines the catalog operations used by the sync engine.
// It is satisfied by *DB and can be replaced with a fake for testing.
type Store interface {
	// AddProduct atomically inserts a product and its files, ignoring rows that exist.
	AddProduct(ctx context.Context, p catalog.Product) error

	// FileIDs returns the set of stored file ids.
	FileIDs(ctx context.Context) (map[int64]struct{}, error)

	// ProductIDs returns the set of stored product ids.
	ProductIDs(ctx context.Context) (map[int64]struct{}, error)

	// ProductNames maps stored product ids to their names.
	ProductNames(ctx context.Context) (map[int64]string, error)

	// ProductsForFileIDs resolves file ids to their distinct owning products.
	ProductsForFileIDs(ctx context.Context, fileIDs []int64) ([]catalog.ProductRef, error)
}

// Compile-time check that *DB satisfies the Store interface.
var _ Store = (*DB)(nil)
