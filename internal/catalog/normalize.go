package catalog

import "fmt"

// NormalizeFile converts one vendor file record into a File. productID is not
// read from the record; Assemble fills it from the owning product.
//
// Checksums are kept only for files without a bootstrapper link, since the
// bootstrapper downloads a different payload on every run.
func NormalizeFile(r RawRecord) (File, error) {
	id, err := r.Int64(fieldFileID)
	if err != nil {
		return File{}, fmt.Errorf("file id: %w", err)
	}
	name, ok := r.String(fieldFileName)
	if !ok {
		return File{}, fmt.Errorf("file %d: %w: %s", id, ErrMissingField, fieldFileName)
	}
	lang, ok := r.String(fieldLanguageCode)
	if !ok {
		return File{}, fmt.Errorf("file %d: %w: %s", id, ErrMissingField, fieldLanguageCode)
	}
	desc, _ := r.String(fieldDescription)

	f := File{
		ID:            id,
		Name:          name,
		Description:   desc,
		LanguageCodes: lang,
		BootstrapLink: nonEmpty(r, fieldBootstrapLink),
	}
	if f.BootstrapLink == nil {
		f.SHA1 = nonEmpty(r, fieldSHA1)
		f.SHA2 = nonEmpty(r, fieldSHA256)
	}
	return f, nil
}

func nonEmpty(r RawRecord, key string) *string {
	s, ok := r.String(key)
	if !ok || s == "" {
		return nil
	}
	return &s
}
