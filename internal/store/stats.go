package store

import (
	"context"
	"fmt"
)

// CatalogStats holds aggregate statistics for the catalog.
type CatalogStats struct {
	ProductCount      int
	NamedProducts     int
	FileCount         int
	BootstrapperCount int
	ChecksummedCount  int
	MaxProductID      int64
}

// Stats returns aggregate statistics for the whole catalog.
func (d *DB) Stats(ctx context.Context) (*CatalogStats, error) {
	stats := &CatalogStats{}

	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(NULLIF(name, '')), COALESCE(MAX(id), 0) FROM products`,
	).Scan(&stats.ProductCount, &stats.NamedProducts, &stats.MaxProductID)
	if err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}

	// Files delivered through a bootstrapper carry no checksum
	err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(bootstrap), COUNT(sha1) FROM files`,
	).Scan(&stats.FileCount, &stats.BootstrapperCount, &stats.ChecksummedCount)
	if err != nil {
		return nil, fmt.Errorf("counting files: %w", err)
	}

	return stats, nil
}

// ProductStats holds per-product file counts.
type ProductStats struct {
	ID        int64
	Name      string
	FileCount int
}

// TopProducts returns the products with the most files, largest first.
func (d *DB) TopProducts(ctx context.Context, limit int) ([]ProductStats, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT p.id, COALESCE(p.name, ''), COUNT(f.id) AS n
		FROM products p LEFT JOIN files f ON f.product = p.id
		GROUP BY p.id
		ORDER BY n DESC, p.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying product stats: %w", err)
	}
	defer rows.Close()

	var results []ProductStats
	for rows.Next() {
		var s ProductStats
		if err := rows.Scan(&s.ID, &s.Name, &s.FileCount); err != nil {
			return nil, fmt.Errorf("scanning product stats: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}
