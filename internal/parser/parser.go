// Package parser recovers learned rules from the managed section of a
// Markdown document and encodes the per-rule metadata annotation.
package parser

import (
	"strings"

	"github.com/starford/rulekeeper/internal/classify"
	"github.com/starford/rulekeeper/internal/models"
)

// DefaultHeader opens the managed section.
const DefaultHeader = "## Learned Rules"

// Parser reads the section introduced by Header. Category headings are one
// level deeper than Header; any heading at Header's level or above ends the
// section.
type Parser struct {
	header string
	level  int
}

// New returns a parser for the given section header. An empty header or one
// that is not a Markdown heading falls back to DefaultHeader.
func New(header string) *Parser {
	header = strings.TrimSpace(header)
	level, _, ok := HeadingLevel(header)
	if !ok {
		header = DefaultHeader
		level, _, _ = HeadingLevel(header)
	}
	return &Parser{header: header, level: level}
}

// Header returns the section header line.
func (p *Parser) Header() string { return p.header }

// Level returns the heading level of the section header.
func (p *Parser) Level() int { return p.level }

// Bounds returns the byte range of the section in doc: from the start of the
// header line to the start of the terminating heading line, or len(doc).
// body is the offset just past the header line.
func (p *Parser) Bounds(doc string) (start, body, end int, ok bool) {
	start = p.findHeader(doc)
	if start < 0 {
		return 0, 0, 0, false
	}
	body = len(doc)
	if nl := strings.IndexByte(doc[start:], '\n'); nl >= 0 {
		body = start + nl + 1
	}
	end = len(doc)
	for pos := body; pos < len(doc); {
		next := len(doc)
		if nl := strings.IndexByte(doc[pos:], '\n'); nl >= 0 {
			next = pos + nl + 1
		}
		if level, _, ok := HeadingLevel(doc[pos:next]); ok && level <= p.level {
			end = pos
			break
		}
		pos = next
	}
	return start, body, end, true
}

// findHeader locates the first occurrence of the header that starts a line.
func (p *Parser) findHeader(doc string) int {
	for from := 0; from < len(doc); {
		i := strings.Index(doc[from:], p.header)
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || doc[i-1] == '\n' {
			return i
		}
		from = i + 1
	}
	return -1
}

// Parse extracts the section model from doc. A document without the header
// yields an empty model with Found set to false.
func (p *Parser) Parse(doc string) *models.Section {
	sec := models.NewSection()
	_, body, end, ok := p.Bounds(doc)
	if !ok {
		return sec
	}
	sec.Found = true

	current := ""
	for _, line := range strings.Split(doc[body:end], "\n") {
		line = strings.TrimRight(line, "\r")
		if level, title, ok := HeadingLevel(line); ok {
			if level == p.level+1 {
				current = classify.Normalize(title)
				if current != "" {
					sec.AddCategory(current)
				}
			}
			continue
		}
		item, ok := bulletText(line)
		if !ok {
			continue
		}
		text, meta := Decode(item)
		if text == "" {
			continue
		}
		meta.Category = classify.Normalize(meta.Category)
		if meta.Category == "" {
			meta.Category = current
		}
		sec.Append(models.Rule{Text: text, Meta: meta})
	}
	return sec
}

// HeadingLevel reports the ATX heading level of line and its title, without
// any closing sequence.
func HeadingLevel(line string) (int, string, bool) {
	line = strings.TrimRight(line, "\r\n")
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 {
		return 0, "", false
	}
	if n < len(line) && line[n] != ' ' && line[n] != '\t' {
		return 0, "", false
	}
	return n, headingTitle(line[n:]), true
}

// headingTitle trims the title and drops an optional closing run of '#'.
// The run only counts when it is the whole title or follows a space.
func headingTitle(s string) string {
	title := strings.TrimSpace(s)
	stripped := strings.TrimRight(title, "#")
	switch {
	case stripped == "":
		return ""
	case stripped != title && (strings.HasSuffix(stripped, " ") || strings.HasSuffix(stripped, "\t")):
		return strings.TrimSpace(stripped)
	}
	return title
}

func bulletText(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	for _, marker := range []string{"- ", "* "} {
		if strings.HasPrefix(trimmed, marker) {
			return trimmed[len(marker):], true
		}
	}
	return "", false
}
