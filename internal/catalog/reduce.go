package catalog

import "strings"

type variantKey struct {
	product int64
	file    int64
}

// ReduceVariants folds the per-language copies of a file into one record.
// Records are grouped by (productId, id); each group keeps its first-seen
// record with languageCode replaced by the comma joined codes of all members,
// in the order they were encountered. Groups come out in first-seen order and
// the input is left untouched.
//
// A record whose key cannot be read is passed through as its own group so
// NormalizeFile can report it.
func ReduceVariants(files []RawRecord) []RawRecord {
	index := make(map[variantKey]int, len(files))
	out := make([]RawRecord, 0, len(files))
	codes := make([][]string, 0, len(files))

	for _, f := range files {
		lang, _ := f.String(fieldLanguageCode)

		pid, perr := f.Int64(fieldProductID)
		fid, ferr := f.Int64(fieldFileID)
		if perr != nil || ferr != nil {
			out = append(out, f)
			codes = append(codes, nil)
			continue
		}

		key := variantKey{product: pid, file: fid}
		if i, seen := index[key]; seen {
			if lang != "" {
				codes[i] = append(codes[i], lang)
			}
			continue
		}

		index[key] = len(out)
		out = append(out, f.clone())
		if lang != "" {
			codes = append(codes, []string{lang})
		} else {
			codes = append(codes, nil)
		}
	}

	// Groups without any code keep the field as it was so a missing
	// languageCode still fails normalization.
	for i, c := range codes {
		if len(c) == 0 {
			continue
		}
		out[i][fieldLanguageCode] = strings.Join(c, ",")
	}
	return out
}
