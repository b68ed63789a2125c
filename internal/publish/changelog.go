package publish

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacklau/mvsdump/internal/catalog"
)

const (
	kib = 1024
	mib = 1024 * 1024
)

// TagFor returns the release tag for t, one per hour: YYYY-MM-DD_HH.
func TagFor(t time.Time) string {
	return t.Format("2006-01-02_15")
}

// Changelog renders the release notes: the changed products as id|name lines
// in a code block, followed by the uncompressed database size. A non-empty
// summary is placed above the list.
func Changelog(changed []catalog.ProductRef, dbSize int64, summary string) string {
	var b strings.Builder
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}

	b.WriteString("New files for these products:\n```")
	for _, p := range changed {
		fmt.Fprintf(&b, "\n%d|%s", p.ID, p.Name)
	}
	// MiB is rounded to nearest, KiB truncated.
	fmt.Fprintf(&b, "\n```\nUncompressed size: `%d MiB (%d KiB)`", (dbSize+mib/2)/mib, dbSize/kib)
	return b.String()
}
