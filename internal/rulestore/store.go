// Package rulestore implements the learned-rule operations. Every call reads
// the target document afresh, mutates the parsed rule list in memory and, for
// mutations, writes the whole document back. There is no locking: concurrent
// writers race and the last write wins.
package rulestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/rulekeeper/internal/apperr"
	"github.com/starford/rulekeeper/internal/checksum"
	"github.com/starford/rulekeeper/internal/classify"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/models"
	"github.com/starford/rulekeeper/internal/parser"
	"github.com/starford/rulekeeper/internal/render"
	"github.com/starford/rulekeeper/internal/storage"
)

// DefaultReviewThreshold is the age in days from which a rule counts as old.
const DefaultReviewThreshold = 30

// Resolver picks the document an operation targets.
type Resolver interface {
	Resolve(scope locate.Scope) locate.Location
}

// Journal records mutations. Implementations must be safe to call after the
// document has already been written; a failure never undoes the write.
type Journal interface {
	Record(ctx context.Context, c models.Change) error
	History(ctx context.Context, path string, limit int) ([]models.Change, error)
}

// Store coordinates document resolution, parsing, rendering and storage.
type Store struct {
	files      storage.Provider
	resolver   Resolver
	parser     *parser.Parser
	renderer   *render.Renderer
	classifier *classify.Classifier
	journal    Journal
	logger     *slog.Logger
	now        func() time.Time
	threshold  int
	pruneEmpty bool
}

// Option configures a Store.
type Option func(*Store)

// WithHeader sets the section header line.
func WithHeader(header string) Option {
	return func(s *Store) { s.parser = parser.New(header) }
}

// WithTable replaces the default category table.
func WithTable(t classify.Table) Option {
	return func(s *Store) { s.classifier = classify.New(t) }
}

// WithClock overrides the time source used for date stamps and review.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithReviewThreshold sets the default review threshold in days.
func WithReviewThreshold(days int) Option {
	return func(s *Store) {
		if days > 0 {
			s.threshold = days
		}
	}
}

// WithPruneEmptyCategories drops category headings that own no rules when the
// section is rewritten.
func WithPruneEmptyCategories(prune bool) Option {
	return func(s *Store) { s.pruneEmpty = prune }
}

// WithJournal enables change history.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store.
func New(files storage.Provider, resolver Resolver, opts ...Option) *Store {
	s := &Store{
		files:      files,
		resolver:   resolver,
		parser:     parser.New(parser.DefaultHeader),
		classifier: classify.New(classify.DefaultTable()),
		logger:     slog.Default(),
		now:        time.Now,
		threshold:  DefaultReviewThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.renderer = render.New(s.parser, s.classifier.Sort)
	return s
}

// Locate resolves scope without reading the document.
func (s *Store) Locate(scope locate.Scope) locate.Location {
	return s.resolver.Resolve(scope)
}

// document is one read of a backing file.
type document struct {
	loc     locate.Location
	raw     string
	section *models.Section
	rules   []models.Rule
}

func (s *Store) load(scope locate.Scope) (*document, error) {
	loc := s.resolver.Resolve(scope)
	data, err := s.files.Read(loc.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("rulestore: load: %w", err)
	}
	raw := string(data)
	sec := s.parser.Parse(raw)
	return &document{
		loc:     loc,
		raw:     raw,
		section: sec,
		rules:   sec.Rules(s.classifier.Sort),
	}, nil
}

// save renders rules into the document and writes it. It returns the new
// document checksum.
func (s *Store) save(doc *document, rules []models.Rule) (string, error) {
	var keep []string
	if !s.pruneEmpty {
		keep = doc.section.Order
	}
	out := s.renderer.Splice(doc.raw, s.renderer.Section(rules, keep...))
	if err := s.files.Write(doc.loc.Path, []byte(out)); err != nil {
		return "", fmt.Errorf("rulestore: save: %w", err)
	}
	return checksum.OfString(out), nil
}

// arrange returns rules in list order: uncategorized first, then categories
// by priority. This is the order the renderer writes them in.
func (s *Store) arrange(rules []models.Rule) []models.Rule {
	sec := models.NewSection()
	for _, r := range rules {
		sec.Append(r)
	}
	return sec.Rules(s.classifier.Sort)
}

func (s *Store) positionOf(rules []models.Rule, target models.Rule) int {
	return slices.Index(s.arrange(rules), target) + 1
}

func (s *Store) today() string {
	return s.now().Format(dateLayout)
}

func (s *Store) record(ctx context.Context, c models.Change) {
	if s.journal == nil {
		return
	}
	c.ID = uuid.NewString()
	c.At = s.now().UTC()
	if err := s.journal.Record(ctx, c); err != nil {
		s.logger.Warn("journal record failed",
			slog.String("op", c.Op),
			slog.String("path", c.Path),
			slog.String("error", err.Error()))
	}
}

// singleLine folds rule text onto one line.
func singleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Add appends a rule unless a duplicate already exists.
func (s *Store) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	req.Text = singleLine(req.Text)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.load(req.Scope)
	if err != nil {
		return nil, err
	}

	res := &AddResult{Location: doc.loc, Context: strings.TrimSpace(req.Context)}
	if existing, i, dup := IsDuplicate(doc.rules, req.Text); dup {
		res.Existing = &Candidate{Index: i + 1, Rule: existing}
		s.logger.Info("rule skipped as duplicate",
			slog.String("path", doc.loc.Path),
			slog.Int("existing_index", i+1))
		return res, nil
	}

	category := classify.Normalize(req.Category)
	if category == "" {
		category = s.classifier.Classify(req.Text)
	}
	rule := models.Rule{Text: req.Text, Meta: models.Metadata{Date: s.today(), Category: category}}
	rules := append(slices.Clone(doc.rules), rule)

	sum, err := s.save(doc, rules)
	if err != nil {
		return nil, err
	}
	res.Added = true
	res.Rule = Candidate{Index: s.positionOf(rules, rule), Rule: rule}

	s.logger.Info("rule added",
		slog.String("path", doc.loc.Path),
		slog.Int("index", res.Rule.Index),
		slog.String("category", category))
	s.record(ctx, models.Change{
		Op: "add", Path: doc.loc.Path, Rule: rule.Text,
		Category: category, Context: res.Context, Checksum: sum,
	})
	return res, nil
}

// List returns the rules of a document, optionally filtered by category.
func (s *Store) List(_ context.Context, req ListRequest) (*ListResult, error) {
	doc, err := s.load(req.Scope)
	if err != nil {
		return nil, err
	}
	filter := classify.Normalize(req.Category)
	res := &ListResult{
		Location: doc.loc,
		Found:    doc.section.Found,
		Category: filter,
		Grouped:  req.Grouped,
		Checksum: checksum.OfString(doc.raw),
	}
	for i, r := range doc.rules {
		if filter != "" && !matchesCategory(r, filter) {
			continue
		}
		res.Rules = append(res.Rules, Candidate{Index: i + 1, Rule: r})
	}
	return res, nil
}

func matchesCategory(r models.Rule, filter string) bool {
	if filter == uncategorized {
		return r.Meta.Category == ""
	}
	return r.Meta.Category == filter
}

// Delete removes the selected rule.
func (s *Store) Delete(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	if err := req.Selector.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.load(req.Scope)
	if err != nil {
		return nil, err
	}
	i, err := req.Selector.find(doc.rules)
	if err != nil {
		return nil, err
	}
	removed := doc.rules[i]
	rules := slices.Delete(slices.Clone(doc.rules), i, i+1)

	sum, err := s.save(doc, rules)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rule deleted",
		slog.String("path", doc.loc.Path),
		slog.Int("index", i+1))
	s.record(ctx, models.Change{
		Op: "delete", Path: doc.loc.Path, Rule: removed.Text,
		Category: removed.Meta.Category, Checksum: sum,
	})
	return &DeleteResult{Location: doc.loc, Removed: Candidate{Index: i + 1, Rule: removed}, Remaining: len(rules)}, nil
}

// Update replaces the text of the selected rule, restamps its date and
// optionally moves it to another category.
func (s *Store) Update(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	req.Text = singleLine(req.Text)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.load(req.Scope)
	if err != nil {
		return nil, err
	}
	i, err := req.Selector.find(doc.rules)
	if err != nil {
		return nil, err
	}
	if d := duplicateOf(doc.rules, req.Text, i); d >= 0 {
		return nil, &DuplicateError{Existing: Candidate{Index: d + 1, Rule: doc.rules[d]}}
	}

	old := doc.rules[i]
	category := old.Meta.Category
	if c := classify.Normalize(req.Category); c != "" {
		category = c
	}
	rule := models.Rule{Text: req.Text, Meta: models.Metadata{Date: s.today(), Category: category}}
	rules := slices.Clone(doc.rules)
	rules[i] = rule

	sum, err := s.save(doc, rules)
	if err != nil {
		return nil, err
	}
	res := &UpdateResult{
		Location: doc.loc,
		Previous: Candidate{Index: i + 1, Rule: old},
		Rule:     Candidate{Index: s.positionOf(rules, rule), Rule: rule},
	}
	s.logger.Info("rule updated",
		slog.String("path", doc.loc.Path),
		slog.Int("index", res.Rule.Index),
		slog.String("category", category))
	s.record(ctx, models.Change{
		Op: "update", Path: doc.loc.Path, Rule: rule.Text, Previous: old.Text,
		Category: category, Checksum: sum,
	})
	return res, nil
}

// Review buckets rules by age relative to a threshold in days.
func (s *Store) Review(_ context.Context, req ReviewRequest) (*ReviewResult, error) {
	doc, err := s.load(req.Scope)
	if err != nil {
		return nil, err
	}
	threshold := req.ThresholdDays
	if threshold <= 0 {
		threshold = s.threshold
	}
	now := s.now()
	res := &ReviewResult{Location: doc.loc, Threshold: threshold, Total: len(doc.rules)}
	for i, r := range doc.rules {
		c := Candidate{Index: i + 1, Rule: r}
		age, ok := ageDays(r.Meta.Date, now)
		switch {
		case !ok:
			res.Undated = append(res.Undated, c)
		case age >= threshold:
			res.Old = append(res.Old, AgedRule{Candidate: c, AgeDays: age})
		default:
			res.Recent = append(res.Recent, AgedRule{Candidate: c, AgeDays: age})
		}
	}
	return res, nil
}

// History returns journaled changes for the resolved document, newest first.
func (s *Store) History(ctx context.Context, req HistoryRequest) (*HistoryResult, error) {
	if s.journal == nil {
		return nil, fmt.Errorf("%w: change journal is disabled", apperr.ErrUnavailable)
	}
	loc := s.resolver.Resolve(req.Scope)
	path := loc.Path
	if req.AllDocuments {
		path = ""
	}
	changes, err := s.journal.History(ctx, path, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("rulestore: history: %w", err)
	}
	return &HistoryResult{Location: loc, AllDocuments: req.AllDocuments, Changes: changes}, nil
}
