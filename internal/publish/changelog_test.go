package publish

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/jacklau/mvsdump/internal/catalog"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestChangelog(t *testing.T) {
	tests := []struct {
		golden  string
		changed []catalog.ProductRef
		size    int64
		summary string
	}{
		{
			golden:  "changelog",
			changed: []catalog.ProductRef{{ID: 1, Name: "Windows 11"}, {ID: 42, Name: "Office"}},
			size:    3*mib + 700*kib,
		},
		{
			golden:  "changelog_summary",
			changed: []catalog.ProductRef{{ID: 7, Name: "Visual Studio"}},
			size:    100,
			summary: "  Two new ISOs.\n",
		},
		{
			golden: "changelog_empty",
			size:   512 * kib,
		},
	}

	g := newGoldie(t)
	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			g.Assert(t, tt.golden, []byte(Changelog(tt.changed, tt.size, tt.summary)))
		})
	}
}

func TestTagFor(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2024, 3, 9, 7, 59, 0, 0, time.UTC), "2024-03-09_07"},
		{time.Date(2024, 12, 31, 23, 0, 0, 0, loc), "2024-12-31_23"},
	}
	for _, tt := range tests {
		if got := TagFor(tt.at); got != tt.want {
			t.Errorf("TagFor(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}
