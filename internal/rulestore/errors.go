package rulestore

import (
	"fmt"
	"strings"

	"github.com/starford/rulekeeper/internal/apperr"
	"github.com/starford/rulekeeper/internal/models"
)

// Candidate is a rule paired with its 1-based list index.
type Candidate struct {
	Index int         `json:"index"`
	Rule  models.Rule `json:"rule"`
}

// AmbiguousError is returned when a substring selector hits several rules.
type AmbiguousError struct {
	Match      string
	Candidates []Candidate
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rules match %q; retry with an index:", len(e.Candidates), e.Match)
	for _, c := range e.Candidates {
		fmt.Fprintf(&b, "\n  %d. %s", c.Index, c.Rule.Text)
	}
	return b.String()
}

func (e *AmbiguousError) Is(target error) bool { return target == apperr.ErrAmbiguous }

// DuplicateError is returned when an update would duplicate another rule.
type DuplicateError struct {
	Existing Candidate
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of rule #%d: %s", e.Existing.Index, e.Existing.Rule.Text)
}

func (e *DuplicateError) Is(target error) bool { return target == apperr.ErrConflict }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperr.ErrInvalidInput}, args...)...)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperr.ErrNotFound}, args...)...)
}
