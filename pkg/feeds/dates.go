package feeds

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// dateLayouts covers the formats seen across feed dialects, RFC 1123 variants
// first since RSS pubDate overwhelmingly uses them.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
}

// ParseDate normalizes a raw feed date string. It tries the known layouts,
// then a tolerant best-effort parse. ok is false when nothing matched; the
// caller decides what to substitute.
func ParseDate(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	if t, err := dateparse.ParseAny(raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
