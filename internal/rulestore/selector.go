package rulestore

import (
	"fmt"
	"strings"

	"github.com/starford/rulekeeper/internal/models"
)

// Selector picks one rule either by 1-based index or by a case-insensitive
// substring of its text. Exactly one of the two must be set.
type Selector struct {
	Index *int   `json:"index,omitempty"`
	Match string `json:"match,omitempty"`
}

// At selects the rule at a 1-based index.
func At(index int) Selector { return Selector{Index: &index} }

// Matching selects the single rule whose text contains match.
func Matching(match string) Selector { return Selector{Match: match} }

// Validate rejects selectors that set both fields or neither.
func (s Selector) Validate() error {
	hasMatch := strings.TrimSpace(s.Match) != ""
	if (s.Index != nil) == hasMatch {
		return invalid("provide exactly one of index or match")
	}
	return nil
}

func (s Selector) String() string {
	if s.Index != nil {
		return fmt.Sprintf("#%d", *s.Index)
	}
	return fmt.Sprintf("match %q", s.Match)
}

// find returns the 0-based position of the selected rule.
func (s Selector) find(rules []models.Rule) (int, error) {
	if s.Index != nil {
		i := *s.Index
		if i < 1 || i > len(rules) {
			return 0, notFound("rule index %d is out of range (have %d rules)", i, len(rules))
		}
		return i - 1, nil
	}

	needle := strings.ToLower(strings.TrimSpace(s.Match))
	var hits []Candidate
	for i, r := range rules {
		if strings.Contains(strings.ToLower(r.Text), needle) {
			hits = append(hits, Candidate{Index: i + 1, Rule: r})
		}
	}
	switch len(hits) {
	case 0:
		return 0, notFound("no rule matches %q", s.Match)
	case 1:
		return hits[0].Index - 1, nil
	default:
		return 0, &AmbiguousError{Match: s.Match, Candidates: hits}
	}
}
