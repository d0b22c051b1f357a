package rulestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/rulekeeper/internal/apperr"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/models"
	"github.com/starford/rulekeeper/internal/storage"
)

type fixedResolver struct {
	path string
}

func (r fixedResolver) Resolve(locate.Scope) locate.Location {
	return locate.Location{Path: r.path, Project: true}
}

type memJournal struct {
	changes []models.Change
}

func (j *memJournal) Record(_ context.Context, c models.Change) error {
	j.changes = append(j.changes, c)
	return nil
}

func (j *memJournal) History(_ context.Context, path string, limit int) ([]models.Change, error) {
	var out []models.Change
	for i := len(j.changes) - 1; i >= 0; i-- {
		if path == "" || j.changes[i].Path == path {
			out = append(out, j.changes[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local)

func testStore(t *testing.T, initial string, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "CLAUDE.md")
	if initial != "" {
		if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(storage.NewFS(), fixedResolver{path: path}, opts...), path
}

func readDoc(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestAdd_CreatesSectionWithInferredCategory(t *testing.T) {
	s, path := testStore(t, "")
	res, err := s.Add(context.Background(), AddRequest{Text: "Always use pytest, not unittest", Context: "ran unittest"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !res.Added || res.Rule.Index != 1 {
		t.Errorf("result = %+v", res)
	}
	want := "## Learned Rules\n\n### Testing\n\n- Always use pytest, not unittest <!-- @date:2026-10-15 @category:testing -->\n"
	if diff := cmp.Diff(want, readDoc(t, path)); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(res.String(), "Learned from: ran unittest") {
		t.Errorf("result text = %q", res.String())
	}
}

func TestAdd_ExplicitCategoryIsNormalized(t *testing.T) {
	s, path := testStore(t, "")
	res, err := s.Add(context.Background(), AddRequest{Text: "Keep functions short", Category: "Code Style"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.Rule.Rule.Meta.Category != "code-style" {
		t.Errorf("category = %q", res.Rule.Rule.Meta.Category)
	}
	if !strings.Contains(readDoc(t, path), "### Code Style\n") {
		t.Error("missing display heading")
	}
}

func TestAdd_DuplicateIsSkipped(t *testing.T) {
	s, path := testStore(t, "")
	ctx := context.Background()
	if _, err := s.Add(ctx, AddRequest{Text: "Use rg, not grep"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	before := readDoc(t, path)

	for _, text := range []string{"Use rg, not grep", "use RG", "Always Use rg, not grep when searching"} {
		res, err := s.Add(ctx, AddRequest{Text: text})
		if err != nil {
			t.Fatalf("Add(%q): %v", text, err)
		}
		if res.Added || res.Existing == nil || res.Existing.Index != 1 {
			t.Errorf("Add(%q) = %+v, want skipped duplicate of #1", text, res)
		}
	}
	if readDoc(t, path) != before {
		t.Error("duplicate add modified the document")
	}
}

func TestAdd_RejectsBlankText(t *testing.T) {
	s, path := testStore(t, "")
	_, err := s.Add(context.Background(), AddRequest{Text: "  \n "})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("document should not be created")
	}
}

func TestAdd_FoldsMultilineText(t *testing.T) {
	s, _ := testStore(t, "")
	res, err := s.Add(context.Background(), AddRequest{Text: "line one\nline   two"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.Rule.Rule.Text != "line one line two" {
		t.Errorf("text = %q", res.Rule.Rule.Text)
	}
}

func TestAdd_TextWithCommentSurvivesLaterWrites(t *testing.T) {
	s, path := testStore(t, "")
	ctx := context.Background()
	const text = "Never ship <!-- TODO --> markers in templates"

	if _, err := s.Add(ctx, AddRequest{Text: text}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, AddRequest{Text: "Run go vet before pushing"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if doc := readDoc(t, path); !strings.Contains(doc, "- "+text+" <!-- @date:2026-10-15 ") {
		t.Errorf("rule text lost in document:\n%s", doc)
	}
	res, err := s.List(ctx, ListRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var texts []string
	for _, c := range res.Rules {
		texts = append(texts, c.Rule.Text)
	}
	if len(texts) != 2 || !slices.Contains(texts, text) {
		t.Errorf("listed texts = %q", texts)
	}
}

func TestAdd_PreservesSurroundingContent(t *testing.T) {
	before := "# Project\n\nBuild with make.\n\n"
	after := "## Architecture\n\nHexagonal.\n"
	s, path := testStore(t, before+"## Learned Rules\n\n- legacy\n\n"+after)

	if _, err := s.Add(context.Background(), AddRequest{Text: "Never force push", Category: "git"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := readDoc(t, path)
	if !strings.HasPrefix(got, before) || !strings.HasSuffix(got, after) {
		t.Errorf("surrounding content changed:\n%s", got)
	}
	want := before + "## Learned Rules\n\n- legacy\n\n### Git\n\n- Never force push <!-- @date:2026-10-15 @category:git -->\n\n" + after
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

const bashDoc = "## Learned Rules\n\n### Bash\n\n- A <!-- @date:2020-01-01 -->\n- B <!-- @date:2020-01-01 -->\n"

func TestUpdate_StampsDateAndKeepsCategory(t *testing.T) {
	s, path := testStore(t, bashDoc)
	ctx := context.Background()

	res, err := s.Update(ctx, UpdateRequest{Selector: Matching("A"), Text: "A2"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := models.Rule{Text: "A2", Meta: models.Metadata{Date: "2026-10-15", Category: "bash"}}
	if res.Rule.Rule != want {
		t.Errorf("rule = %+v, want %+v", res.Rule.Rule, want)
	}
	if res.Previous.Rule.Text != "A" {
		t.Errorf("previous = %+v", res.Previous)
	}
	wantDoc := "## Learned Rules\n\n### Bash\n\n- A2 <!-- @date:2026-10-15 @category:bash -->\n- B <!-- @date:2020-01-01 @category:bash -->\n"
	if diff := cmp.Diff(wantDoc, readDoc(t, path)); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}

	before := readDoc(t, path)
	_, err = s.Update(ctx, UpdateRequest{Selector: Matching("A2"), Text: "B"})
	var dup *DuplicateError
	if !errors.As(err, &dup) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want DuplicateError", err)
	}
	if dup.Existing.Rule.Text != "B" || dup.Existing.Index != 2 {
		t.Errorf("existing = %+v", dup.Existing)
	}
	if readDoc(t, path) != before {
		t.Error("rejected update modified the document")
	}
}

func TestUpdate_SameTextIsNotSelfDuplicate(t *testing.T) {
	s, _ := testStore(t, bashDoc)
	if _, err := s.Update(context.Background(), UpdateRequest{Selector: At(1), Text: "A"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestUpdate_MovesCategory(t *testing.T) {
	s, path := testStore(t, bashDoc)
	res, err := s.Update(context.Background(), UpdateRequest{Selector: At(1), Text: "Never force push", Category: "Git"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Rule.Index != 2 || res.Rule.Rule.Meta.Category != "git" {
		t.Errorf("rule = %+v", res.Rule)
	}
	doc := readDoc(t, path)
	if !strings.Contains(doc, "### Git\n\n- Never force push <!-- @date:2026-10-15 @category:git -->\n") {
		t.Errorf("document:\n%s", doc)
	}
}

func TestUpdate_Validation(t *testing.T) {
	s, _ := testStore(t, bashDoc)
	ctx := context.Background()
	cases := []UpdateRequest{
		{Text: "x"},
		{Selector: Selector{Index: At(1).Index, Match: "A"}, Text: "x"},
		{Selector: At(1), Text: "   "},
	}
	for _, req := range cases {
		if _, err := s.Update(ctx, req); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Update(%+v) err = %v, want ErrInvalidInput", req, err)
		}
	}
}

func TestDelete_IndexStability(t *testing.T) {
	doc := "## Learned Rules\n\n- one\n- two\n- three\n"
	s, path := testStore(t, doc)
	ctx := context.Background()

	res, err := s.Delete(ctx, DeleteRequest{Selector: At(2)})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if res.Removed.Rule.Text != "two" || res.Remaining != 2 {
		t.Errorf("result = %+v", res)
	}

	list, err := s.List(ctx, ListRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Rules) != 2 || list.Rules[1].Index != 2 || list.Rules[1].Rule.Text != "three" {
		t.Errorf("rules = %+v", list.Rules)
	}

	before := readDoc(t, path)
	for _, i := range []int{0, 3, -1} {
		_, err := s.Delete(ctx, DeleteRequest{Selector: At(i)})
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Delete(%d) err = %v, want ErrNotFound", i, err)
		}
	}
	if readDoc(t, path) != before {
		t.Error("rejected delete modified the document")
	}
}

func TestDelete_ByMatch(t *testing.T) {
	s, _ := testStore(t, "## Learned Rules\n\n- Use rg for search\n- Use fd for find\n- Prefer make\n")
	ctx := context.Background()

	_, err := s.Delete(ctx, DeleteRequest{Selector: Matching("use")})
	var amb *AmbiguousError
	if !errors.As(err, &amb) || !errors.Is(err, apperr.ErrAmbiguous) {
		t.Fatalf("err = %v, want AmbiguousError", err)
	}
	if len(amb.Candidates) != 2 || amb.Candidates[0].Index != 1 || amb.Candidates[1].Index != 2 {
		t.Errorf("candidates = %+v", amb.Candidates)
	}
	if !strings.Contains(err.Error(), "1. Use rg for search") {
		t.Errorf("error should enumerate candidates: %v", err)
	}

	if _, err := s.Delete(ctx, DeleteRequest{Selector: Matching("nothing here")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	res, err := s.Delete(ctx, DeleteRequest{Selector: Matching("FD")})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if res.Removed.Index != 2 {
		t.Errorf("removed = %+v", res.Removed)
	}
}

func TestDelete_SelectorValidation(t *testing.T) {
	s, _ := testStore(t, bashDoc)
	ctx := context.Background()
	for _, sel := range []Selector{{}, {Index: At(1).Index, Match: "A"}, Matching("  ")} {
		if _, err := s.Delete(ctx, DeleteRequest{Selector: sel}); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Delete(%+v) err = %v, want ErrInvalidInput", sel, err)
		}
	}
}

func TestDelete_KeepsEmptyCategoryHeading(t *testing.T) {
	doc := "## Learned Rules\n\n### Bash\n\n- use rg <!-- @category:bash -->\n\n### Git\n\n- rebase <!-- @category:git -->\n"
	ctx := context.Background()

	s, path := testStore(t, doc)
	if _, err := s.Delete(ctx, DeleteRequest{Selector: Matching("rebase")}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := "## Learned Rules\n\n### Bash\n\n- use rg <!-- @category:bash -->\n\n### Git\n\n"
	if diff := cmp.Diff(want, readDoc(t, path)); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}

	pruned, prunedPath := testStore(t, doc, WithPruneEmptyCategories(true))
	if _, err := pruned.Delete(ctx, DeleteRequest{Selector: Matching("rebase")}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if strings.Contains(readDoc(t, prunedPath), "### Git") {
		t.Error("empty heading should be pruned")
	}
}

const mixedDoc = "## Learned Rules\n\n- legacy\n\n### Git\n\n- rebase <!-- @date:2026-10-01 @category:git -->\n\n### Bash\n\n- use rg <!-- @date:2026-10-02 @category:bash -->\n- quote vars <!-- @category:bash -->\n"

func TestList_FlatInPriorityOrder(t *testing.T) {
	s, _ := testStore(t, mixedDoc)
	res, err := s.List(context.Background(), ListRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := "Learned rules in project rules (" + res.Location.Path + ") (4):\n" +
		"1. [no date] [uncategorized] legacy\n" +
		"2. [2026-10-02] [bash] use rg\n" +
		"3. [no date] [bash] quote vars\n" +
		"4. [2026-10-01] [git] rebase"
	if diff := cmp.Diff(want, res.String()); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
	if res.Checksum == "" {
		t.Error("expected checksum")
	}
}

func TestList_FilteredGrouped(t *testing.T) {
	s, _ := testStore(t, mixedDoc)
	res, err := s.List(context.Background(), ListRequest{Category: "BASH", Grouped: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	out := res.String()
	if !strings.Contains(out, "### Bash\n2. use rg\n3. quote vars") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "Git") || strings.Contains(out, "legacy") {
		t.Errorf("filter leaked other categories:\n%s", out)
	}

	res, err = s.List(context.Background(), ListRequest{Category: "uncategorized"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Rules) != 1 || res.Rules[0].Rule.Text != "legacy" {
		t.Errorf("uncategorized rules = %+v", res.Rules)
	}
}

func TestList_EmptyAndMissingDocument(t *testing.T) {
	s, path := testStore(t, "")
	res, err := s.List(context.Background(), ListRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Found || len(res.Rules) != 0 {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasPrefix(res.String(), "No learned rules found") {
		t.Errorf("text = %q", res.String())
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("list must not create the document")
	}
}

func TestReview_AgeBuckets(t *testing.T) {
	doc := "## Learned Rules\n\n" +
		"- exactly threshold <!-- @date:2026-09-15 -->\n" +
		"- one day short <!-- @date:2026-09-16 -->\n" +
		"- today <!-- @date:2026-10-15 -->\n" +
		"- undated\n" +
		"- garbage date <!-- @date:someday -->\n"
	s, _ := testStore(t, doc)

	res, err := s.Review(context.Background(), ReviewRequest{})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.Threshold != DefaultReviewThreshold {
		t.Errorf("threshold = %d", res.Threshold)
	}
	if len(res.Old) != 1 || res.Old[0].Rule.Text != "exactly threshold" || res.Old[0].AgeDays != 30 {
		t.Errorf("old = %+v", res.Old)
	}
	if len(res.Recent) != 2 || res.Recent[0].AgeDays != 29 || res.Recent[1].AgeDays != 0 {
		t.Errorf("recent = %+v", res.Recent)
	}
	if len(res.Undated) != 2 || res.Undated[0].Index != 4 {
		t.Errorf("undated = %+v", res.Undated)
	}

	res, err = s.Review(context.Background(), ReviewRequest{ThresholdDays: 29})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(res.Old) != 2 {
		t.Errorf("old with threshold 29 = %+v", res.Old)
	}
}

func TestReview_ConfiguredThreshold(t *testing.T) {
	s, _ := testStore(t, "## Learned Rules\n\n- x <!-- @date:2026-10-10 -->\n", WithReviewThreshold(5))
	res, err := s.Review(context.Background(), ReviewRequest{})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.Threshold != 5 || len(res.Old) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestOperations_ReadErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	// A directory where the document should be makes every read fail.
	path := filepath.Join(dir, "CLAUDE.md")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	s := New(storage.NewFS(), fixedResolver{path: path})

	if _, err := s.Add(context.Background(), AddRequest{Text: "x"}); err == nil {
		t.Error("expected read error from Add")
	}
	if _, err := s.List(context.Background(), ListRequest{}); err == nil {
		t.Error("expected read error from List")
	}
}

func TestJournal_RecordsMutations(t *testing.T) {
	j := &memJournal{}
	s, path := testStore(t, "", WithJournal(j))
	ctx := context.Background()

	if _, err := s.Add(ctx, AddRequest{Text: "use rg", Context: "used grep"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, UpdateRequest{Selector: At(1), Text: "use rg always"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Delete(ctx, DeleteRequest{Selector: At(1)}); err != nil {
		t.Fatal(err)
	}

	res, err := s.History(ctx, HistoryRequest{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var ops []string
	for _, c := range res.Changes {
		ops = append(ops, c.Op)
		if c.Path != path || c.ID == "" || c.Checksum == "" {
			t.Errorf("change = %+v", c)
		}
	}
	if diff := cmp.Diff([]string{"delete", "update", "add"}, ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	if res.Changes[2].Context != "used grep" || res.Changes[1].Previous != "use rg" {
		t.Errorf("changes = %+v", res.Changes)
	}
}

func TestHistory_DisabledJournal(t *testing.T) {
	s, _ := testStore(t, "")
	if _, err := s.History(context.Background(), HistoryRequest{}); !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestIsDuplicate(t *testing.T) {
	existing := []models.Rule{{Text: "Use rg, not grep"}, {Text: "Prefer make targets"}}
	cases := []struct {
		text  string
		dup   bool
		index int
	}{
		{"use rg", true, 0},
		{"USE RG, NOT GREP", true, 0},
		{"  Always Use rg, not grep in scripts  ", true, 0},
		{"prefer MAKE", true, 1},
		{"Use fd", false, -1},
		{"   ", false, -1},
	}
	for _, tc := range cases {
		_, i, dup := IsDuplicate(existing, tc.text)
		if dup != tc.dup || i != tc.index {
			t.Errorf("IsDuplicate(%q) = (%d, %v), want (%d, %v)", tc.text, i, dup, tc.index, tc.dup)
		}
	}
}
