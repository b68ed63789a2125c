package catalog

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func rawProduct(id int, files ...RawRecord) RawRecord {
	list := make([]any, len(files))
	for i, f := range files {
		list[i] = map[string]any(f)
	}
	return RawRecord{"productId": float64(id), "fileDetailModels": list}
}

func TestAssembleReducesAndNormalizes(t *testing.T) {
	logger, buf := captureLogger()
	raw := rawProduct(1,
		rawFile(1, 10, "pl", "X"),
		rawFile(1, 10, "en", "X"),
		rawFile(1, 11, "en", "X"),
	)

	p, err := Assemble(raw, logger)
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "X", p.Name)
	require.Len(t, p.Files, 2)
	assert.Equal(t, int64(10), p.Files[0].ID)
	assert.Equal(t, int64(1), p.Files[0].ProductID)
	assert.Equal(t, "pl,en", p.Files[0].LanguageCodes)
	assert.Equal(t, int64(11), p.Files[1].ID)
	assert.NotContains(t, buf.String(), "inconsistency")
}

func TestAssembleGroupsVariantsWithoutProductID(t *testing.T) {
	logger, _ := captureLogger()
	pl := RawRecord{"id": float64(20), "fileName": "f20", "languageCode": "pl"}
	en := RawRecord{"id": float64(20), "fileName": "f20", "languageCode": "en"}
	raw := rawProduct(3, pl, en)

	p, err := Assemble(raw, logger)
	require.NoError(t, err)

	require.Len(t, p.Files, 1)
	assert.Equal(t, int64(20), p.Files[0].ID)
	assert.Equal(t, int64(3), p.Files[0].ProductID)
	assert.Equal(t, "pl,en", p.Files[0].LanguageCodes)
	assert.NotContains(t, pl, "productId", "input records must not be changed")
}

func TestAssembleNamingInconsistencyPicksFirstSeen(t *testing.T) {
	logger, buf := captureLogger()
	raw := rawProduct(7,
		rawFile(7, 1, "en", "X"),
		rawFile(7, 2, "en", "X "),
	)

	p, err := Assemble(raw, logger)
	require.NoError(t, err)

	assert.Equal(t, "X", p.Name)
	assert.Len(t, p.Files, 2)
	assert.Contains(t, buf.String(), "product naming inconsistency")
	assert.Contains(t, buf.String(), "product=7")
}

func TestAssembleEmptyFileList(t *testing.T) {
	p, err := Assemble(RawRecord{"productId": float64(3), "fileDetailModels": []any{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.Empty(t, p.Name)
	assert.Empty(t, p.Files)
}

func TestAssembleSkipsMalformedFiles(t *testing.T) {
	logger, buf := captureLogger()
	bad := RawRecord{"productId": float64(1), "id": float64(99), "productName": "X"}
	raw := rawProduct(1, rawFile(1, 10, "en", "X"), bad)

	p, err := Assemble(raw, logger)
	require.NoError(t, err)
	require.Len(t, p.Files, 1)
	assert.Equal(t, int64(10), p.Files[0].ID)
	assert.Contains(t, buf.String(), "skipping malformed file record")
}

func TestAssembleMissingProductID(t *testing.T) {
	_, err := Assemble(RawRecord{"fileDetailModels": []any{}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestSearchNames(t *testing.T) {
	names := SearchNames([]RawRecord{
		{"productId": float64(1), "productName": "Windows"},
		{"productId": float64(1), "productName": "Windows again"},
		{"productId": float64(2), "productName": ""},
		{"productName": "orphan"},
		{"productId": "3", "productName": "Office"},
	})

	assert.Equal(t, map[int64]string{1: "Windows", 3: "Office"}, names)
}
