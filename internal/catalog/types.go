package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vendor field names used by the file listing endpoint.
const (
	fieldProductID     = "productId"
	fieldProductName   = "productName"
	fieldFiles         = "fileDetailModels"
	fieldFileID        = "id"
	fieldFileName      = "fileName"
	fieldDescription   = "fileDescription"
	fieldLanguageCode  = "languageCode"
	fieldBootstrapLink = "bootstrapperDownloadLink"
	fieldSHA1          = "sha1"
	fieldSHA256        = "sha256"
)

// ErrMissingField is returned when a record lacks a field the catalog cannot do without.
var ErrMissingField = errors.New("missing required field")

// RawRecord is a vendor record as decoded from JSON. It is converted to typed
// values by NormalizeFile and Assemble and never handed to the store.
type RawRecord map[string]any

// Product is a vendor catalog title with its files.
type Product struct {
	ID    int64
	Name  string
	Files []File
}

// File is a downloadable artifact of a product. LanguageCodes is the comma
// separated list of every language variant folded into this record.
type File struct {
	ID            int64
	ProductID     int64
	Name          string
	Description   string
	LanguageCodes string
	BootstrapLink *string
	SHA1          *string
	SHA2          *string
}

// ProductRef identifies a product in a change report.
type ProductRef struct {
	ID   int64
	Name string
}

// Int64 reads key as an integer. JSON numbers, numeric strings and Go integer
// kinds are accepted.
func (r RawRecord) Int64(key string) (int64, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	switch n := v.(type) {
	case json.Number:
		return strconv.ParseInt(n.String(), 10, 64)
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("field %s: %v is not an integer", key, n)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", key, err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("field %s: unexpected type %T", key, v)
	}
}

// ProductID reads the productId field.
func (r RawRecord) ProductID() (int64, error) {
	return r.Int64(fieldProductID)
}

// String reads key as a string. ok is false when the key is absent or null.
func (r RawRecord) String(key string) (s string, ok bool) {
	v, present := r[key]
	if !present || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

// Records reads key as a list of records. Entries that are not objects are dropped.
func (r RawRecord) Records(key string) []RawRecord {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	var out []RawRecord
	switch list := v.(type) {
	case []RawRecord:
		out = append(out, list...)
	case []map[string]any:
		for _, m := range list {
			out = append(out, RawRecord(m))
		}
	case []any:
		for _, item := range list {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, RawRecord(m))
			case RawRecord:
				out = append(out, m)
			}
		}
	}
	return out
}

func (r RawRecord) clone() RawRecord {
	c := make(RawRecord, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
