package parser

import (
	"testing"

	"github.com/starford/rulekeeper/internal/models"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		wantText string
		wantMeta models.Metadata
	}{
		{"plain", "  Use rg, not grep  ", "Use rg, not grep", models.Metadata{}},
		{"date only", "A <!-- @date:2020-01-01 -->", "A", models.Metadata{Date: "2020-01-01"}},
		{"both", "Use rg <!-- @date:2026-01-02 @category:bash -->", "Use rg", models.Metadata{Date: "2026-01-02", Category: "bash"}},
		{"extra whitespace", "Use rg   <!--    @category:bash     @date:2026-01-02   -->  ", "Use rg", models.Metadata{Date: "2026-01-02", Category: "bash"}},
		{"unknown keys ignored", "X <!-- @author:me @date:2026-01-02 -->", "X", models.Metadata{Date: "2026-01-02"}},
		{"delimiter without tokens", "X <!-- just a note -->", "X", models.Metadata{}},
		{"comment not trailing", "X <!-- @date:2026-01-02 --> tail", "X <!-- @date:2026-01-02 --> tail", models.Metadata{}},
		{"comment inside text", "Never ship <!-- TODO --> markers in templates <!-- @date:2026-10-15 @category:general -->",
			"Never ship <!-- TODO --> markers in templates", models.Metadata{Date: "2026-10-15", Category: "general"}},
		{"unclosed opener in text", "Escape <!-- in YAML <!-- @date:2026-10-15 -->", "Escape <!-- in YAML", models.Metadata{Date: "2026-10-15"}},
		{"bare delimiters", "X <!---->", "X", models.Metadata{}},
		{"overlapping delimiters", "X <!-->", "X <!-->", models.Metadata{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, meta := Decode(tc.line)
			if text != tc.wantText {
				t.Errorf("text = %q, want %q", text, tc.wantText)
			}
			if meta != tc.wantMeta {
				t.Errorf("meta = %+v, want %+v", meta, tc.wantMeta)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	cases := []struct {
		meta models.Metadata
		want string
	}{
		{models.Metadata{}, ""},
		{models.Metadata{Date: "2026-01-02"}, " <!-- @date:2026-01-02 -->"},
		{models.Metadata{Category: "git"}, " <!-- @category:git -->"},
		{models.Metadata{Date: "2026-01-02", Category: "git"}, " <!-- @date:2026-01-02 @category:git -->"},
	}
	for _, tc := range cases {
		if got := Encode(tc.meta); got != tc.want {
			t.Errorf("Encode(%+v) = %q, want %q", tc.meta, got, tc.want)
		}
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	lines := []string{"Use rg, not grep", "Prefer `make test` over go test ./...", "a > b && c < d"}
	metas := []models.Metadata{
		{},
		{Date: "2026-10-15"},
		{Category: "code-style"},
		{Date: "2026-10-15", Category: "bash"},
	}
	for _, line := range lines {
		for _, m := range metas {
			text, got := Decode(line + Encode(m))
			if text != line || got != m {
				t.Errorf("round trip of (%q, %+v) = (%q, %+v)", line, m, text, got)
			}
		}
	}

	// Text carrying its own comment survives as long as an annotation follows.
	line := "Keep <!-- generated --> blocks untouched"
	for _, m := range metas[1:] {
		text, got := Decode(line + Encode(m))
		if text != line || got != m {
			t.Errorf("round trip of (%q, %+v) = (%q, %+v)", line, m, text, got)
		}
	}
}
