package engine

import (
	"time"

	"github.com/jacklau/mvsdump/internal/catalog"
)

// Report summarises one sync run.
type Report struct {
	RunID      string
	Strategy   Strategy
	StartedAt  time.Time
	FinishedAt time.Time

	// ProductsFetched counts product records returned by the API.
	ProductsFetched int
	// ProductsStored counts products handed to the store, new or not.
	ProductsStored int
	// ProductsSkipped counts product records that could not be assembled.
	ProductsSkipped int
	// NamesRecovered counts products named from search results.
	NamesRecovered int

	OldFileCount int
	NewFileCount int
	// NewFileIDs holds the file ids present after the run but not before,
	// in ascending order.
	NewFileIDs []int64
	// Changed lists the distinct products owning a new file, by id.
	Changed []catalog.ProductRef
}

// HasChanges reports whether the run stored any new file.
func (r *Report) HasChanges() bool {
	return r != nil && len(r.NewFileIDs) > 0
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
