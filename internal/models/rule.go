// Package models defines the domain types for Rulekeeper.
package models

import "time"

// Metadata is the inline annotation attached to a rule line.
type Metadata struct {
	Date     string `json:"date,omitempty"`     // YYYY-MM-DD
	Category string `json:"category,omitempty"` // normalized key, empty for legacy rules
}

// IsZero reports whether no metadata field is set.
func (m Metadata) IsZero() bool {
	return m.Date == "" && m.Category == ""
}

// Rule is one learned guideline. It is always stored as a single bullet line.
type Rule struct {
	Text string   `json:"text"`
	Meta Metadata `json:"metadata"`
}

// Section is the parsed managed region of a document.
type Section struct {
	// Found is false when the document has no section header yet.
	Found bool `json:"found"`
	// Uncategorized holds rules with no category heading above them and no
	// category metadata.
	Uncategorized []Rule `json:"uncategorized"`
	// Categories maps a normalized category key to its rules. Headings that
	// own zero rules keep an empty entry.
	Categories map[string][]Rule `json:"categories"`
	// Order lists category keys in the order they first appeared.
	Order []string `json:"-"`
}

// NewSection returns an empty section model.
func NewSection() *Section {
	return &Section{Categories: make(map[string][]Rule)}
}

// AddCategory ensures an entry for key exists.
func (s *Section) AddCategory(key string) {
	if _, ok := s.Categories[key]; ok {
		return
	}
	s.Categories[key] = []Rule{}
	s.Order = append(s.Order, key)
}

// Append adds r to the uncategorized list or to its category bucket.
func (s *Section) Append(r Rule) {
	if r.Meta.Category == "" {
		s.Uncategorized = append(s.Uncategorized, r)
		return
	}
	s.AddCategory(r.Meta.Category)
	s.Categories[r.Meta.Category] = append(s.Categories[r.Meta.Category], r)
}

// Rules flattens the model into the mutation list: uncategorized rules first,
// then each category in the order returned by sortKeys (document order when
// sortKeys is nil).
func (s *Section) Rules(sortKeys func([]string) []string) []Rule {
	keys := append([]string(nil), s.Order...)
	if sortKeys != nil {
		keys = sortKeys(keys)
	}
	out := make([]Rule, 0, len(s.Uncategorized))
	out = append(out, s.Uncategorized...)
	for _, k := range keys {
		out = append(out, s.Categories[k]...)
	}
	return out
}

// Change is one journaled mutation of a rule document.
type Change struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Op       string    `json:"op"` // "add", "update" or "delete"
	Path     string    `json:"path"`
	Rule     string    `json:"rule"`
	Previous string    `json:"previous,omitempty"`
	Category string    `json:"category,omitempty"`
	Context  string    `json:"context,omitempty"`
	Checksum string    `json:"checksum"`
}
