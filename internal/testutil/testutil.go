// Package testutil provides shared test helpers for rule documents, stores
// and journals.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/rulekeeper/internal/journal"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/rulestore"
	"github.com/starford/rulekeeper/internal/storage"
)

// Now is the fixed clock used by Store.
var Now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local)

// FixedResolver resolves every scope to the same document.
type FixedResolver struct {
	Path    string
	Project bool
}

// Resolve implements rulestore.Resolver.
func (r FixedResolver) Resolve(locate.Scope) locate.Location {
	return locate.Location{Path: r.Path, Project: r.Project}
}

// Document returns the path of a CLAUDE.md in a fresh temporary directory,
// written with content unless content is empty.
func Document(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "CLAUDE.md")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

// ReadDocument returns the content of path.
func ReadDocument(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// Store creates a store bound to the document at path with the clock fixed
// to Now.
func Store(t *testing.T, path string, opts ...rulestore.Option) *rulestore.Store {
	t.Helper()
	opts = append([]rulestore.Option{rulestore.WithClock(func() time.Time { return Now })}, opts...)
	return rulestore.New(storage.NewFS(), FixedResolver{Path: path, Project: true}, opts...)
}

// Journal opens a temporary change journal that is closed on cleanup.
func Journal(t *testing.T) *journal.DB {
	t.Helper()
	db, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
