package parser

import (
	"regexp"
	"strings"

	"github.com/starford/rulekeeper/internal/models"
)

var tokenRe = regexp.MustCompile(`@([A-Za-z_]+):(\S+)`)

// annotation locates the last <!-- ... --> block when it ends the line.
// Comments earlier on the line belong to the rule text.
func annotation(line string) (start int, body string, ok bool) {
	trimmed := strings.TrimRight(line, " \t\r")
	if !strings.HasSuffix(trimmed, "-->") {
		return 0, "", false
	}
	start = strings.LastIndex(trimmed, "<!--")
	if start < 0 || start+len("<!--") > len(trimmed)-len("-->") {
		return 0, "", false
	}
	return start, trimmed[start+len("<!--") : len(trimmed)-len("-->")], true
}

// Decode splits a rule line into its text and trailing metadata annotation.
// The last trailing <!-- ... --> block is consumed as metadata; only the date
// and category keys are recognized.
func Decode(line string) (string, models.Metadata) {
	var meta models.Metadata
	start, body, ok := annotation(line)
	if !ok {
		return strings.TrimSpace(line), meta
	}
	for _, m := range tokenRe.FindAllStringSubmatch(body, -1) {
		switch strings.ToLower(m[1]) {
		case "date":
			meta.Date = m[2]
		case "category":
			meta.Category = m[2]
		}
	}
	return strings.TrimSpace(line[:start]), meta
}

// Encode returns the annotation suffix for meta, or "" when it is empty.
// Fields are always written date first.
func Encode(meta models.Metadata) string {
	if meta.IsZero() {
		return ""
	}
	var parts []string
	if meta.Date != "" {
		parts = append(parts, "@date:"+meta.Date)
	}
	if meta.Category != "" {
		parts = append(parts, "@category:"+meta.Category)
	}
	return " <!-- " + strings.Join(parts, " ") + " -->"
}
