package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacklau/mvsdump/internal/catalog"
)

// maxListed caps the products listed in one message.
const maxListed = 20

// ProductLabel returns the product name, or a placeholder for unnamed products.
func ProductLabel(p catalog.ProductRef) string {
	if p.Name == "" {
		return fmt.Sprintf("product %d (unnamed)", p.ID)
	}
	return p.Name
}

// FormatProducts formats changed products as a bulleted list.
// Example: "- `1` Windows 11\n- `42` Office"
func FormatProducts(changed []catalog.ProductRef) string {
	if len(changed) == 0 {
		return "None"
	}
	n := min(len(changed), maxListed)
	parts := make([]string, 0, n+1)
	for _, p := range changed[:n] {
		parts = append(parts, fmt.Sprintf("- `%d` %s", p.ID, ProductLabel(p)))
	}
	if rest := len(changed) - n; rest > 0 {
		parts = append(parts, fmt.Sprintf("- ...and %d more", rest))
	}
	return strings.Join(parts, "\n")
}

// Headline returns a one-line description of u.
func Headline(u Update) string {
	return fmt.Sprintf("%s in %s",
		plural(u.NewFiles, "new file", "new files"),
		plural(len(u.Changed), "product", "products"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

// TimeAgo returns a human-readable relative time string.
func TimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		secs := int(d.Seconds())
		if secs <= 1 {
			return "just now"
		}
		return fmt.Sprintf("%d sec ago", secs)
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d min ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
