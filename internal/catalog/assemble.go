package catalog

import (
	"fmt"
	"log/slog"
)

// Assemble turns one vendor product payload into a Product with normalized,
// variant-reduced files.
//
// The vendor repeats the product name on every file record. When those names
// disagree the first one seen wins and the conflict is logged. Files missing a
// critical field are skipped with a warning.
func Assemble(raw RawRecord, logger *slog.Logger) (Product, error) {
	if logger == nil {
		logger = slog.Default()
	}

	id, err := raw.Int64(fieldProductID)
	if err != nil {
		return Product{}, fmt.Errorf("product id: %w", err)
	}

	files := withProductID(raw.Records(fieldFiles), id)
	p := Product{ID: id, Name: productName(id, files, logger)}

	for _, rf := range ReduceVariants(files) {
		f, err := NormalizeFile(rf)
		if err != nil {
			logger.Warn("skipping malformed file record", "product", id, "error", err)
			continue
		}
		f.ProductID = id
		p.Files = append(p.Files, f)
	}
	return p, nil
}

// withProductID gives file records that lack productId the id of the product
// carrying them, so their language variants are grouped with each other.
// Records are copied before they are changed.
func withProductID(files []RawRecord, id int64) []RawRecord {
	out := make([]RawRecord, len(files))
	for i, f := range files {
		if v, ok := f[fieldProductID]; ok && v != nil {
			out[i] = f
			continue
		}
		c := f.clone()
		c[fieldProductID] = id
		out[i] = c
	}
	return out
}

// productName returns the first product name carried by files, warning when
// the files disagree.
func productName(id int64, files []RawRecord, logger *slog.Logger) string {
	var names []string
	seen := make(map[string]bool)
	for _, f := range files {
		name, ok := f.String(fieldProductName)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	if len(names) == 0 {
		return ""
	}
	if len(names) > 1 {
		logger.Warn("product naming inconsistency", "product", id, "names", names, "chosen", names[0])
	}
	return names[0]
}

// SearchNames extracts product id to name pairs from search results. Later
// duplicates of an id are ignored.
func SearchNames(results []RawRecord) map[int64]string {
	names := make(map[int64]string, len(results))
	for _, r := range results {
		id, err := r.Int64(fieldProductID)
		if err != nil {
			continue
		}
		name, ok := r.String(fieldProductName)
		if !ok || name == "" {
			continue
		}
		if _, dup := names[id]; !dup {
			names[id] = name
		}
	}
	return names
}
