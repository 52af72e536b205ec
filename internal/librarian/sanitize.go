package librarian

import (
	"regexp"
	"strings"
)

const maxFilenameLength = 200

var collapseRe = regexp.MustCompile(`[-_\s]+`)

// sanitizeFilename turns an arbitrary title into a safe filename stem.
// Letters, digits, spaces, dots, dashes, underscores, and parentheses
// survive; everything else becomes a dash, runs collapse to a single
// dash, and the result is length-capped. An empty result falls back to
// "untitled".
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, c := range title {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '.', c == '-', c == '_', c == '(', c == ')':
			b.WriteRune(c)
		default:
			b.WriteRune('-')
		}
	}

	safe := collapseRe.ReplaceAllString(b.String(), "-")
	safe = strings.Trim(safe, "-")

	if len(safe) > maxFilenameLength {
		safe = strings.TrimRight(safe[:maxFilenameLength], "-")
	}
	if safe == "" {
		safe = "untitled"
	}
	return safe
}
