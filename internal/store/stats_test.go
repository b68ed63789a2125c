package store

import (
	"context"
	"testing"

	"github.com/jacklau/mvsdump/internal/catalog"
)

func TestStats_Empty(t *testing.T) {
	db := setupTestDB(t)

	stats, err := db.Stats(context.Background())
	if err != nil {
		t.Fatalf("getting stats: %v", err)
	}
	if *stats != (CatalogStats{}) {
		t.Errorf("expected zero stats, got %+v", *stats)
	}
}

func TestStats_WithData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	boot := "https://example.com/setup.exe"
	products := []catalog.Product{
		{ID: 3, Name: "Named", Files: []catalog.File{
			{ID: 1, Name: "a.iso", LanguageCodes: "en", SHA1: strp("a1"), SHA2: strp("a2")},
			{ID: 2, Name: "setup.exe", LanguageCodes: "en", BootstrapLink: &boot},
		}},
		{ID: 9, Name: "", Files: []catalog.File{
			{ID: 3, Name: "b.iso", LanguageCodes: "pl", SHA1: strp("b1")},
		}},
	}
	for _, p := range products {
		if err := db.AddProduct(ctx, p); err != nil {
			t.Fatalf("AddProduct failed: %v", err)
		}
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("getting stats: %v", err)
	}

	want := CatalogStats{
		ProductCount:      2,
		NamedProducts:     1,
		FileCount:         3,
		BootstrapperCount: 1,
		ChecksummedCount:  2,
		MaxProductID:      9,
	}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestTopProducts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, p := range []catalog.Product{
		sampleProduct(1, "One", 10),
		sampleProduct(2, "Three", 20, 21, 22),
		sampleProduct(3, "Two", 30, 31),
		sampleProduct(4, "None"),
	} {
		if err := db.AddProduct(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	top, err := db.TopProducts(ctx, 3)
	if err != nil {
		t.Fatalf("TopProducts failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(top))
	}

	wantIDs := []int64{2, 3, 1}
	for i, id := range wantIDs {
		if top[i].ID != id {
			t.Errorf("row %d: expected product %d, got %d", i, id, top[i].ID)
		}
	}
	if top[0].FileCount != 3 || top[0].Name != "Three" {
		t.Errorf("unexpected top row %+v", top[0])
	}
}
