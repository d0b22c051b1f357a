package render

import "strings"

// Splice replaces the managed section of doc with section. Text before the
// header and from the terminating heading onward is kept verbatim. When the
// document has no section yet, it is appended after a single blank line.
func (r *Renderer) Splice(doc, section string) string {
	start, _, end, ok := r.parser.Bounds(doc)
	if !ok {
		trimmed := strings.TrimRight(doc, "\n")
		if trimmed == "" {
			return section
		}
		return trimmed + "\n\n" + section
	}
	rest := doc[end:]
	if rest == "" {
		return doc[:start] + section
	}
	return doc[:start] + section + "\n" + rest
}
