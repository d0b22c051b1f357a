package rulestore

import (
	"strings"

	"github.com/starford/rulekeeper/internal/models"
)

// IsDuplicate reports whether text duplicates one of existing, returning the
// first such rule and its 0-based position. Two texts are duplicates when one
// is a case-insensitive substring of the other after trimming. Meaning-based
// matching is left to the caller.
func IsDuplicate(existing []models.Rule, text string) (models.Rule, int, bool) {
	i := duplicateOf(existing, text, -1)
	if i < 0 {
		return models.Rule{}, -1, false
	}
	return existing[i], i, true
}

func duplicateOf(existing []models.Rule, text string, skip int) int {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return -1
	}
	for i, r := range existing {
		if i == skip {
			continue
		}
		have := strings.ToLower(strings.TrimSpace(r.Text))
		if have == "" {
			continue
		}
		if strings.Contains(have, needle) || strings.Contains(needle, have) {
			return i
		}
	}
	return -1
}
