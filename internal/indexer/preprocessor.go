package indexer

import (
	"strings"
	"unicode"
)

// NormalizeName prepares a feature name for full-text indexing: underscores become
// spaces (the standard analyzer does not split on them) and whitespace runs collapse.
func NormalizeName(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "_", " "))
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
