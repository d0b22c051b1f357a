package rulestore

import (
	"fmt"
	"strings"

	"github.com/starford/rulekeeper/internal/classify"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/models"
)

func label(loc locate.Location) string {
	if loc.Project {
		return "project rules (" + loc.Path + ")"
	}
	return "global rules (" + loc.Path + ")"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// AddResult reports an addition or a skipped duplicate.
type AddResult struct {
	Location locate.Location `json:"location"`
	Added    bool            `json:"added"`
	Rule     Candidate       `json:"rule"`
	Existing *Candidate      `json:"existing,omitempty"`
	Context  string          `json:"context,omitempty"`
}

func (r *AddResult) String() string {
	if !r.Added && r.Existing != nil {
		return fmt.Sprintf("Skipped: a similar rule already exists in %s.\n  #%d: %s\nNo changes were made.",
			label(r.Location), r.Existing.Index, r.Existing.Rule.Text)
	}
	s := fmt.Sprintf("Added rule #%d [%s] to %s:\n  %s",
		r.Rule.Index, r.Rule.Rule.Meta.Category, label(r.Location), r.Rule.Rule.Text)
	if r.Context != "" {
		s += "\nLearned from: " + r.Context
	}
	return s
}

// ListResult holds the (possibly filtered) rules with their global indices.
type ListResult struct {
	Location locate.Location `json:"location"`
	Found    bool            `json:"found"`
	Category string          `json:"category,omitempty"`
	Grouped  bool            `json:"grouped"`
	Checksum string          `json:"checksum"`
	Rules    []Candidate     `json:"rules"`
}

func (r *ListResult) String() string {
	if len(r.Rules) == 0 {
		if r.Category != "" {
			return fmt.Sprintf("No learned rules in category %q in %s.", r.Category, label(r.Location))
		}
		return fmt.Sprintf("No learned rules found in %s.", label(r.Location))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Learned rules in %s (%d):\n", label(r.Location), len(r.Rules))
	if !r.Grouped {
		for _, c := range r.Rules {
			fmt.Fprintf(&b, "%d. [%s] [%s] %s\n", c.Index,
				orDefault(c.Rule.Meta.Date, "no date"),
				orDefault(c.Rule.Meta.Category, uncategorized),
				c.Rule.Text)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	current := "\x00"
	for _, c := range r.Rules {
		if cat := c.Rule.Meta.Category; cat != current {
			current = cat
			title := "Uncategorized"
			if cat != "" {
				title = classify.Display(cat)
			}
			fmt.Fprintf(&b, "\n### %s\n", title)
		}
		fmt.Fprintf(&b, "%d. %s\n", c.Index, c.Rule.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DeleteResult reports a removed rule.
type DeleteResult struct {
	Location  locate.Location `json:"location"`
	Removed   Candidate       `json:"removed"`
	Remaining int             `json:"remaining"`
}

func (r *DeleteResult) String() string {
	return fmt.Sprintf("Deleted rule #%d from %s:\n  %s\n%d rules remain.",
		r.Removed.Index, label(r.Location), r.Removed.Rule.Text, r.Remaining)
}

// UpdateResult reports a rewritten rule.
type UpdateResult struct {
	Location locate.Location `json:"location"`
	Previous Candidate       `json:"previous"`
	Rule     Candidate       `json:"rule"`
}

func (r *UpdateResult) String() string {
	return fmt.Sprintf("Updated rule #%d in %s:\n  was: %s\n  now: %s [%s, %s]",
		r.Rule.Index, label(r.Location), r.Previous.Rule.Text, r.Rule.Rule.Text,
		orDefault(r.Rule.Rule.Meta.Category, uncategorized), r.Rule.Rule.Meta.Date)
}

// AgedRule is a dated rule with its age in whole days.
type AgedRule struct {
	Candidate
	AgeDays int `json:"age_days"`
}

// ReviewResult buckets rules by age.
type ReviewResult struct {
	Location  locate.Location `json:"location"`
	Threshold int             `json:"threshold_days"`
	Total     int             `json:"total"`
	Old       []AgedRule      `json:"old"`
	Recent    []AgedRule      `json:"recent"`
	Undated   []Candidate     `json:"undated"`
}

func (r *ReviewResult) String() string {
	if r.Total == 0 {
		return fmt.Sprintf("No learned rules found in %s.", label(r.Location))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Rule review for %s (threshold %d days, %d rules):\n", label(r.Location), r.Threshold, r.Total)
	if len(r.Old) > 0 {
		fmt.Fprintf(&b, "\nOld rules (%d), consider updating or deleting:\n", len(r.Old))
		writeAged(&b, r.Old)
	}
	if len(r.Recent) > 0 {
		fmt.Fprintf(&b, "\nRecent rules (%d):\n", len(r.Recent))
		writeAged(&b, r.Recent)
	}
	if len(r.Undated) > 0 {
		fmt.Fprintf(&b, "\nUndated rules (%d), update them to add a date:\n", len(r.Undated))
		for _, c := range r.Undated {
			fmt.Fprintf(&b, "%d. %s\n", c.Index, c.Rule.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeAged(b *strings.Builder, rules []AgedRule) {
	for _, a := range rules {
		fmt.Fprintf(b, "%d. [%d days, %s] %s\n", a.Index, a.AgeDays, a.Rule.Meta.Date, a.Rule.Text)
	}
}

// HistoryResult lists journaled changes.
type HistoryResult struct {
	Location     locate.Location `json:"location"`
	AllDocuments bool            `json:"all"`
	Changes      []models.Change `json:"changes"`
}

func (r *HistoryResult) String() string {
	if len(r.Changes) == 0 {
		return "No recorded changes."
	}
	var b strings.Builder
	for _, c := range r.Changes {
		fmt.Fprintf(&b, "%s %-6s %s", c.At.Format("2006-01-02 15:04:05"), c.Op, c.Rule)
		if c.Previous != "" {
			fmt.Fprintf(&b, " (was: %s)", c.Previous)
		}
		if r.AllDocuments {
			fmt.Fprintf(&b, " [%s]", c.Path)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
