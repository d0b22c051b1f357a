// Package classify infers a rule's category from its text and defines the
// display and ordering conventions shared by the parser and the renderer.
package classify

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultFallback is the category returned when no keyword matches.
const DefaultFallback = "general"

var separatorRe = regexp.MustCompile(`[\s_-]+`)

// Entry maps a category to the keywords that select it.
type Entry struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Table is the classifier configuration. Categories are tested in order and
// the first entry with a matching keyword wins. Priority fixes the order in
// which category groups are displayed.
type Table struct {
	Categories []Entry  `yaml:"categories"`
	Priority   []string `yaml:"priority"`
	Fallback   string   `yaml:"fallback"`
}

// DefaultTable returns the built-in keyword table.
func DefaultTable() Table {
	entries := []Entry{
		{Name: "bash", Keywords: []string{"bash", "shell", "terminal", "zsh", "command line", "grep", "sed ", "awk", "script"}},
		{Name: "git", Keywords: []string{"git", "commit", "branch", "merge", "rebase", "pull request", "push"}},
		{Name: "testing", Keywords: []string{"test", "pytest", "jest", "coverage", "assert", "mock", "fixture"}},
		{Name: "code-style", Keywords: []string{"style", "format", "naming", "indent", "lint", "comment", "convention"}},
		{Name: "architecture", Keywords: []string{"architecture", "design", "pattern", "module", "structure", "interface", "layer"}},
		{Name: "security", Keywords: []string{"security", "secret", "password", "credential", "token", "auth", "encrypt"}},
		{Name: "performance", Keywords: []string{"performance", "optimiz", "cache", "latency", "memory", "slow"}},
		{Name: "documentation", Keywords: []string{"document", "readme", "docstring", "docs", "changelog"}},
		{Name: "tooling", Keywords: []string{"npm", "pip", "docker", "makefile", "build", "dependency", "package", "tool"}},
	}
	priority := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		priority = append(priority, e.Name)
	}
	priority = append(priority, DefaultFallback)
	return Table{Categories: entries, Priority: priority, Fallback: DefaultFallback}
}

// Classifier applies a Table.
type Classifier struct {
	entries  []Entry
	rank     map[string]int
	fallback string
}

// New builds a Classifier from t. Names and keywords are normalized; an empty
// fallback becomes DefaultFallback.
func New(t Table) *Classifier {
	c := &Classifier{
		rank:     make(map[string]int, len(t.Priority)),
		fallback: Normalize(t.Fallback),
	}
	if c.fallback == "" {
		c.fallback = DefaultFallback
	}
	for _, e := range t.Categories {
		kw := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			if k = strings.ToLower(k); k != "" {
				kw = append(kw, k)
			}
		}
		c.entries = append(c.entries, Entry{Name: Normalize(e.Name), Keywords: kw})
	}
	for i, p := range t.Priority {
		key := Normalize(p)
		if _, dup := c.rank[key]; !dup {
			c.rank[key] = i
		}
	}
	return c
}

// Classify returns the first category whose keyword list has a substring
// match in text, or the fallback category.
func (c *Classifier) Classify(text string) string {
	lower := strings.ToLower(text)
	for _, e := range c.entries {
		for _, k := range e.Keywords {
			if strings.Contains(lower, k) {
				return e.Name
			}
		}
	}
	return c.fallback
}

// Sort returns keys ordered by priority: listed categories first in list
// order, then everything else alphabetically. The input is not modified.
func (c *Classifier) Sort(keys []string) []string {
	out := slices.Clone(keys)
	slices.SortStableFunc(out, func(a, b string) int {
		ra, oka := c.rank[a]
		rb, okb := c.rank[b]
		switch {
		case oka && okb:
			return ra - rb
		case oka:
			return -1
		case okb:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	return out
}

// Normalize converts a category name or heading into its key form:
// lower-case, trimmed, runs of whitespace, underscores and hyphens collapsed
// to a single hyphen.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Trim(separatorRe.ReplaceAllString(name, "-"), "-")
}

// Display renders a key for headings: each hyphen-separated word title-cased
// and joined with spaces ("code-style" becomes "Code Style").
func Display(key string) string {
	words := strings.Split(key, "-")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if r == utf8.RuneError {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
