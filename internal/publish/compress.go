package publish

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Compress writes a gzip copy of src to dst and returns the uncompressed size.
// dst is written to a temporary file first and renamed into place.
func Compress(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw, err := gzip.NewWriterLevel(tmp, gzip.BestCompression)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("creating gzip writer: %w", err)
	}
	zw.Name = filepath.Base(src)

	n, err := io.Copy(zw, in)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("compressing %s: %w", src, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("finishing gzip stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, fmt.Errorf("moving archive into place: %w", err)
	}
	return n, nil
}
