package state

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxSlugLen caps slug length so generated filenames stay manageable.
const maxSlugLen = 64

// Slugify converts free text into a filesystem-safe slug: lowercase,
// non-alphanumeric runs collapsed to single hyphens, truncated at a word
// boundary when longer than maxSlugLen.
func Slugify(text string) string {
	if strings.TrimSpace(text) == "" {
		return "untitled"
	}

	s := strings.ToLower(strings.TrimSpace(text))

	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")

	if slug == "" {
		return "untitled"
	}

	if len(slug) <= maxSlugLen {
		return slug
	}

	// Truncate at word boundary if possible.
	truncated := slug[:maxSlugLen]
	if lastHyphen := strings.LastIndex(truncated, "-"); lastHyphen > maxSlugLen/2 {
		truncated = truncated[:lastHyphen]
	}

	return strings.TrimRight(truncated, "-")
}

// childPath joins name under dir and rejects names that would escape the
// container (path traversal via "..", absolute names, separators).
func childPath(dir, name string) (string, error) {
	joined := filepath.Join(dir, name)
	cleanDir := filepath.Clean(dir)
	if joined != filepath.Join(cleanDir, filepath.Base(joined)) ||
		!strings.HasPrefix(joined, cleanDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid name %q: escapes %s", name, dir)
	}
	return joined, nil
}
