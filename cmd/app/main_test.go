package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/rulekeeper/internal/apperr"
	"github.com/starford/rulekeeper/internal/rulestore"
)

// cliEnv isolates HOME and returns a project directory holding a CLAUDE.md
// and a config path that does not exist.
func cliEnv(t *testing.T) (project, config string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	project = t.TempDir()
	if err := os.WriteFile(filepath.Join(project, "CLAUDE.md"), []byte("# Project\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return project, filepath.Join(t.TempDir(), "missing.yaml")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	err := cmd.Run(context.Background(), append([]string{"rulekeeper"}, args...))
	return out.String(), err
}

func TestCLI_AddListDelete(t *testing.T) {
	project, config := cliEnv(t)

	out, err := runCLI(t, "-c", config, "add", "--dir", project, "--context", "used grep", "Use", "rg", "not", "grep")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Added rule #1 [bash] to project rules") {
		t.Errorf("add output = %q", out)
	}

	doc, err := os.ReadFile(filepath.Join(project, "CLAUDE.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(doc), "# Project\n\n## Learned Rules\n\n### Bash\n\n- Use rg not grep <!-- @date:") {
		t.Errorf("document = %q", doc)
	}

	out, err = runCLI(t, "-c", config, "list", "--dir", project, "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list rulestore.ListResult
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(list.Rules) != 1 || !list.Location.Project {
		t.Errorf("list = %+v", list)
	}

	out, err = runCLI(t, "-c", config, "delete", "--dir", project, "--match", "RG")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Deleted rule #1") || !strings.Contains(out, "0 rules remain.") {
		t.Errorf("delete output = %q", out)
	}
}

func TestCLI_SelectorRequired(t *testing.T) {
	project, config := cliEnv(t)
	_, err := runCLI(t, "-c", config, "delete", "--dir", project)
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCLI_GlobalScope(t *testing.T) {
	project, config := cliEnv(t)

	out, err := runCLI(t, "-c", config, "add", "--dir", project, "--scope", "global", "Never force push")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "to global rules (") {
		t.Errorf("add output = %q", out)
	}
	global := filepath.Join(os.Getenv("HOME"), ".claude", "CLAUDE.md")
	if _, err := os.Stat(global); err != nil {
		t.Errorf("global document not created: %v", err)
	}
}

func TestCLI_ConfigFromFile(t *testing.T) {
	project, _ := cliEnv(t)
	config := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "rules:\n  section_header: \"## Lessons\"\n  review_threshold_days: 30\n  categories:\n    - name: general\n      keywords: [x]\n"
	if err := os.WriteFile(config, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := runCLI(t, "-c", config, "add", "--dir", project, "Prefer small commits"); err != nil {
		t.Fatalf("add: %v", err)
	}
	doc, _ := os.ReadFile(filepath.Join(project, "CLAUDE.md"))
	if !strings.Contains(string(doc), "## Lessons\n") || strings.Contains(string(doc), "## Learned Rules") {
		t.Errorf("document = %q", doc)
	}
}

func TestCLI_InvalidConfig(t *testing.T) {
	project, _ := cliEnv(t)
	config := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(config, []byte("rules:\n  section_header: Lessons\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "-c", config, "list", "--dir", project); err == nil {
		t.Error("expected config validation error")
	}
}
