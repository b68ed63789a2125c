package publish

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacklau/mvsdump/internal/catalog"
)

func writeDB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func gunzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

func TestCompress(t *testing.T) {
	src := writeDB(t, "sqlite bytes")
	size, err := Compress(src, src+".gz")
	require.NoError(t, err)
	assert.Equal(t, int64(len("sqlite bytes")), size)
	assert.Equal(t, "sqlite bytes", gunzip(t, src+".gz"))

	entries, err := os.ReadDir(filepath.Dir(src))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestCompressMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := Compress(filepath.Join(dir, "nope.db"), filepath.Join(dir, "nope.db.gz"))
	assert.Error(t, err)
}

func TestPrepare(t *testing.T) {
	src := writeDB(t, "data")
	at := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)

	a, err := Prepare(Release{DBPath: src, Changed: []catalog.ProductRef{{ID: 3, Name: "Z"}}, CreatedAt: at}, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01_14", a.Tag)
	assert.Equal(t, "2025-06-01_14.gz", a.AssetName())
	assert.Equal(t, src+".gz", a.ArchivePath)
	assert.Equal(t, int64(4), a.Size)
	assert.Contains(t, a.Notes, "\n3|Z\n")
}

type recordingSink struct {
	name string
	err  error
	got  []*Artifact
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, a *Artifact) error {
	s.got = append(s.got, a)
	return s.err
}

type staticCompleter struct {
	out string
	err error
}

func (c staticCompleter) Complete(context.Context, string) (string, error) { return c.out, c.err }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestPublisherContinuesAfterSinkFailure(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingSink{name: "first", err: boom}
	second := &recordingSink{name: "second"}

	p := NewPublisher(nil, quietLogger(), first, second)
	assert.Equal(t, 2, p.Sinks())

	a, err := p.Publish(context.Background(), Release{DBPath: writeDB(t, "x")})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, a)
	assert.Len(t, first.got, 1)
	assert.Len(t, second.got, 1)
	assert.Same(t, first.got[0], second.got[0], "the archive is prepared once")
}

func TestPublisherPrependsSummary(t *testing.T) {
	sink := &recordingSink{name: "s"}
	sum := NewSummarizer(staticCompleter{out: " Fresh images. "}, quietLogger())
	p := NewPublisher(sum, quietLogger(), sink)

	a, err := p.Publish(context.Background(), Release{
		DBPath:  writeDB(t, "x"),
		Changed: []catalog.ProductRef{{ID: 1, Name: "A"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix([]byte(a.Notes), []byte("Fresh images.\n\nNew files")), a.Notes)
}

func TestSummarizer(t *testing.T) {
	changed := []catalog.ProductRef{{ID: 1, Name: "A"}}

	s := NewSummarizer(staticCompleter{err: errors.New("quota")}, quietLogger())
	assert.Empty(t, s.Summarize(context.Background(), changed), "model errors yield no summary")

	s = NewSummarizer(staticCompleter{out: "unused"}, quietLogger())
	assert.Empty(t, s.Summarize(context.Background(), nil))
}

func TestBuildSummaryPrompt(t *testing.T) {
	changed := make([]catalog.ProductRef, maxSummaryProducts+5)
	for i := range changed {
		changed[i] = catalog.ProductRef{ID: int64(i + 1), Name: "P"}
	}
	changed[0].Name = ""

	prompt := buildSummaryPrompt(changed)
	assert.Contains(t, prompt, "- 1: (unnamed)\n")
	assert.Contains(t, prompt, "... and 5 more\n")
	assert.NotContains(t, prompt, "- 101:")
}
