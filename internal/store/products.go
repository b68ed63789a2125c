package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jacklau/mvsdump/internal/catalog"
)

// maxInArgs bounds the placeholders used in one IN (...) list.
const maxInArgs = 500

// AddProduct stores a product and its files in one transaction. Rows that
// already exist are left untouched, so a stored product name is never
// overwritten and re-adding the same batch changes nothing.
func (d *DB) AddProduct(ctx context.Context, p catalog.Product) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning product transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO products (id, name) VALUES (?, ?)`,
		p.ID, p.Name,
	); err != nil {
		return fmt.Errorf("inserting product %d: %w", p.ID, err)
	}

	if len(p.Files) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO files (product, id, name, "desc", langc, bootstrap, sha1, sha2)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing file insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range p.Files {
			if _, err := stmt.ExecContext(ctx,
				p.ID, f.ID, f.Name, f.Description, f.LanguageCodes,
				nullPtr(f.BootstrapLink), nullPtr(f.SHA1), nullPtr(f.SHA2),
			); err != nil {
				return fmt.Errorf("inserting file %d of product %d: %w", f.ID, p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing product %d: %w", p.ID, err)
	}
	return nil
}

// FileIDs returns the id of every stored file. File ids are compared without
// their product, see DESIGN.md.
func (d *DB) FileIDs(ctx context.Context) (map[int64]struct{}, error) {
	return d.idSet(ctx, `SELECT id FROM files`)
}

// ProductIDs returns the id of every stored product.
func (d *DB) ProductIDs(ctx context.Context) (map[int64]struct{}, error) {
	return d.idSet(ctx, `SELECT id FROM products`)
}

// MaxProductID returns the largest stored product id, or 0 for an empty catalog.
func (d *DB) MaxProductID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := d.db.QueryRowContext(ctx, `SELECT MAX(id) FROM products`).Scan(&max); err != nil {
		return 0, fmt.Errorf("querying max product id: %w", err)
	}
	return max.Int64, nil
}

// ProductNames maps every stored product id to its name.
func (d *DB) ProductNames(ctx context.Context) (map[int64]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name FROM products`)
	if err != nil {
		return nil, fmt.Errorf("querying product names: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		names[id] = name.String
	}
	return names, rows.Err()
}

// ProductsForFileIDs returns the distinct products owning any of the given
// file ids, ordered by product id.
func (d *DB) ProductsForFileIDs(ctx context.Context, fileIDs []int64) ([]catalog.ProductRef, error) {
	found := make(map[int64]string)
	for start := 0; start < len(fileIDs); start += maxInArgs {
		end := min(start+maxInArgs, len(fileIDs))
		chunk := fileIDs[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `
			SELECT id, name FROM products
			WHERE id IN (
				SELECT DISTINCT product FROM files
				WHERE id IN (` + placeholders(len(chunk)) + `)
			)`

		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("querying products for files: %w", err)
		}
		for rows.Next() {
			var id int64
			var name sql.NullString
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning product: %w", err)
			}
			found[id] = name.String
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	refs := make([]catalog.ProductRef, 0, len(found))
	for id, name := range found {
		refs = append(refs, catalog.ProductRef{ID: id, Name: name})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// FileMatch is a stored file returned by SearchFiles.
type FileMatch struct {
	ProductID     int64
	ProductName   string
	FileID        int64
	Name          string
	Description   string
	LanguageCodes string
	SHA1          string
	SHA2          string
	BootstrapLink string
}

// likeEscaper quotes the LIKE metacharacters other than %.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `_`, `\_`)

// SearchFiles returns files whose name or description matches pattern,
// case-insensitively. A pattern without % matches as a plain substring, so
// the underscores in vendor file names are literal. With % the pattern is used
// as a LIKE pattern escaped by backslash.
func (d *DB) SearchFiles(ctx context.Context, pattern string, limit int) ([]FileMatch, error) {
	if !strings.Contains(pattern, "%") {
		pattern = "%" + likeEscaper.Replace(pattern) + "%"
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT f.product, p.name, f.id, f.name, f."desc", f.langc, f.sha1, f.sha2, f.bootstrap
		FROM files f JOIN products p ON p.id = f.product
		WHERE f.name LIKE ? ESCAPE '\' OR f."desc" LIKE ? ESCAPE '\'
		ORDER BY f.product, f.id
		LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching files: %w", err)
	}
	defer rows.Close()

	var matches []FileMatch
	for rows.Next() {
		var m FileMatch
		var pname, name, desc, langc, sha1, sha2, boot sql.NullString
		if err := rows.Scan(&m.ProductID, &pname, &m.FileID, &name, &desc, &langc, &sha1, &sha2, &boot); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		m.ProductName = pname.String
		m.Name = name.String
		m.Description = desc.String
		m.LanguageCodes = langc.String
		m.SHA1 = sha1.String
		m.SHA2 = sha2.String
		m.BootstrapLink = boot.String
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (d *DB) idSet(ctx context.Context, query string) (map[int64]struct{}, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
