// Package render serializes learned rules back into the managed section and
// splices that section into the surrounding document.
package render

import (
	"slices"
	"strings"

	"github.com/starford/rulekeeper/internal/classify"
	"github.com/starford/rulekeeper/internal/models"
	"github.com/starford/rulekeeper/internal/parser"
)

// Renderer writes sections in the format understood by parser.Parser.
type Renderer struct {
	parser   *parser.Parser
	sortKeys func([]string) []string
}

// New creates a renderer. sortKeys orders category groups; nil keeps
// alphabetical order.
func New(p *parser.Parser, sortKeys func([]string) []string) *Renderer {
	return &Renderer{parser: p, sortKeys: sortKeys}
}

// Body renders rules without the section header. Rules without a category
// come first in their original order, then one group per category in sort
// order. keep names categories whose heading is emitted even when no rule
// belongs to it.
func (r *Renderer) Body(rules []models.Rule, keep ...string) string {
	var (
		b      strings.Builder
		flat   []models.Rule
		keys   []string
		groups = make(map[string][]models.Rule)
	)
	for _, k := range keep {
		if _, ok := groups[k]; !ok && k != "" {
			groups[k] = nil
			keys = append(keys, k)
		}
	}
	for _, rule := range rules {
		cat := rule.Meta.Category
		if cat == "" {
			flat = append(flat, rule)
			continue
		}
		if _, ok := groups[cat]; !ok {
			keys = append(keys, cat)
		}
		groups[cat] = append(groups[cat], rule)
	}
	keys = r.sort(keys)

	if len(flat) > 0 {
		b.WriteString("\n")
		for _, rule := range flat {
			writeBullet(&b, rule)
		}
	}
	heading := strings.Repeat("#", r.parser.Level()+1) + " "
	for _, k := range keys {
		b.WriteString("\n" + heading + classify.Display(k) + "\n\n")
		for _, rule := range groups[k] {
			writeBullet(&b, rule)
		}
	}
	return b.String()
}

// Section renders the header line followed by Body.
func (r *Renderer) Section(rules []models.Rule, keep ...string) string {
	return r.parser.Header() + "\n" + r.Body(rules, keep...)
}

func (r *Renderer) sort(keys []string) []string {
	if r.sortKeys != nil {
		return r.sortKeys(keys)
	}
	out := slices.Clone(keys)
	slices.Sort(out)
	return out
}

func writeBullet(b *strings.Builder, rule models.Rule) {
	b.WriteString("- ")
	b.WriteString(rule.Text)
	b.WriteString(parser.Encode(rule.Meta))
	b.WriteString("\n")
}
