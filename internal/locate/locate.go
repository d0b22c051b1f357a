// Package locate decides which rule document an operation targets: the
// nearest project document above a starting directory, or the global one.
package locate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/rulekeeper/internal/apperr"
)

// DefaultFilename is the document looked up in project directories.
const DefaultFilename = "CLAUDE.md"

// Scope is the caller's hint for document resolution.
type Scope struct {
	// Dir is the directory the upward walk starts from. Empty means global.
	Dir string `json:"dir,omitempty"`
	// Global skips the walk entirely.
	Global bool `json:"global,omitempty"`
}

// Scope modes accepted by ParseScope.
const (
	ModeAuto   = "auto"
	ModeGlobal = "global"
)

// ParseScope builds a Scope from a mode name and a starting directory. An
// empty mode means ModeAuto; in auto mode an empty dir falls back to
// fallbackDir.
func ParseScope(mode, dir, fallbackDir string) (Scope, error) {
	switch mode {
	case "", ModeAuto:
		if dir == "" {
			dir = fallbackDir
		}
		return Scope{Dir: dir}, nil
	case ModeGlobal:
		return Scope{Global: true}, nil
	default:
		return Scope{}, fmt.Errorf("%w: scope must be %q or %q, got %q", apperr.ErrInvalidInput, ModeAuto, ModeGlobal, mode)
	}
}

// Location is a resolved document.
type Location struct {
	Path    string `json:"path"`
	Project bool   `json:"project"`
}

// Resolver walks directory trees looking for Filename.
type Resolver struct {
	Filename   string
	Home       string
	GlobalPath string
	Exists     func(path string) bool
}

// NewResolver returns a resolver using the user's home directory. An empty
// globalPath becomes ~/.claude/<filename>.
func NewResolver(filename, globalPath string, exists func(string) bool) (*Resolver, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate: home dir: %w", err)
	}
	if globalPath == "" {
		globalPath = filepath.Join(home, ".claude", filename)
	}
	return &Resolver{Filename: filename, Home: home, GlobalPath: globalPath, Exists: exists}, nil
}

// Resolve returns the project document nearest to scope.Dir, skipping the
// home directory, or the global document when none is found.
func (r *Resolver) Resolve(scope Scope) Location {
	global := Location{Path: r.GlobalPath}
	if scope.Global || scope.Dir == "" {
		return global
	}
	dir, err := filepath.Abs(scope.Dir)
	if err != nil {
		return global
	}
	home := filepath.Clean(r.Home)
	for {
		candidate := filepath.Join(dir, r.Filename)
		if dir != home && r.Exists(candidate) {
			return Location{Path: candidate, Project: true}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return global
		}
		dir = parent
	}
}
