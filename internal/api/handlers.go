package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/starford/rulekeeper/internal/apperr"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/rulestore"
	"github.com/starford/rulekeeper/internal/sse"
)

// RuleService is the subset of *rulestore.Store the handlers use.
type RuleService interface {
	Add(ctx context.Context, req rulestore.AddRequest) (*rulestore.AddResult, error)
	List(ctx context.Context, req rulestore.ListRequest) (*rulestore.ListResult, error)
	Delete(ctx context.Context, req rulestore.DeleteRequest) (*rulestore.DeleteResult, error)
	Update(ctx context.Context, req rulestore.UpdateRequest) (*rulestore.UpdateResult, error)
	Review(ctx context.Context, req rulestore.ReviewRequest) (*rulestore.ReviewResult, error)
	History(ctx context.Context, req rulestore.HistoryRequest) (*rulestore.HistoryResult, error)
}

// Publisher receives rule mutations for live clients.
type Publisher interface {
	PublishRule(op string, data sse.RuleData)
}

// Handler holds API route handlers.
type Handler struct {
	svc        RuleService
	events     Publisher
	defaultDir string
}

// NewHandler creates a new Handler. events may be nil. defaultDir is where
// document resolution starts when a request names no project directory.
func NewHandler(svc RuleService, events Publisher, defaultDir string) *Handler {
	return &Handler{svc: svc, events: events, defaultDir: defaultDir}
}

func (h *Handler) publish(op string, path string, c rulestore.Candidate) {
	if h.events == nil {
		return
	}
	h.events.PublishRule(op, sse.RuleData{Path: path, Index: c.Index, Rule: c.Rule.Text})
}

func (h *Handler) scope(mode, dir string) (locate.Scope, error) {
	return locate.ParseScope(mode, dir, h.defaultDir)
}

func (h *Handler) queryScope(r *http.Request) (locate.Scope, error) {
	q := r.URL.Query()
	return h.scope(q.Get("scope"), q.Get("dir"))
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", apperr.ErrInvalidInput, name)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListRules handles GET /api/rules.
//
//	@Summary		List learned rules
//	@Tags			rules
//	@Produce		json
//	@Param			category	query		string	false	"Category key, or uncategorized"
//	@Param			grouped		query		bool	false	"Group by category in the text form"
//	@Param			scope		query		string	false	"Resolution mode"	Enums(auto, global)
//	@Param			dir			query		string	false	"Project directory to start from"
//	@Success		200			{object}	ListResponse
//	@Header			200			{string}	ETag	"Document checksum"
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rules [get]
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	scope, err := h.queryScope(r)
	if err != nil {
		writeError(w, "list rules", err)
		return
	}
	grouped, _ := strconv.ParseBool(r.URL.Query().Get("grouped"))
	res, err := h.svc.List(r.Context(), rulestore.ListRequest{
		Category: r.URL.Query().Get("category"),
		Grouped:  grouped,
		Scope:    scope,
	})
	if err != nil {
		writeError(w, "list rules", err)
		return
	}
	w.Header().Set("ETag", `"`+res.Checksum+`"`)
	writeJSON(w, http.StatusOK, res)
}

// AddRule handles POST /api/rules.
//
//	@Summary		Add a learned rule
//	@Description	A rule that duplicates an existing one is not added; the response then carries the existing rule.
//	@Tags			rules
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AddRuleRequest	true	"Rule to add"
//	@Success		201		{object}	AddResponse
//	@Success		200		{object}	AddResponse	"Duplicate, nothing written"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rules [post]
func (h *Handler) AddRule(w http.ResponseWriter, r *http.Request) {
	var req AddRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	scope, err := h.scope(req.Scope, req.ProjectDir)
	if err != nil {
		writeError(w, "add rule", err)
		return
	}
	res, err := h.svc.Add(r.Context(), rulestore.AddRequest{
		Text:     req.Rule,
		Context:  req.Context,
		Category: req.Category,
		Scope:    scope,
	})
	if err != nil {
		writeError(w, "add rule", err)
		return
	}
	if !res.Added {
		writeJSON(w, http.StatusOK, res)
		return
	}
	h.publish("added", res.Location.Path, res.Rule)
	writeJSON(w, http.StatusCreated, res)
}

// UpdateRule handles PUT /api/rules.
//
//	@Summary		Rewrite a learned rule
//	@Tags			rules
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateRuleRequest	true	"Selector and replacement"
//	@Success		200		{object}	UpdateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse	"Ambiguous match or duplicate text"
//	@Security		BearerAuth
//	@Router			/rules [put]
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req UpdateRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	scope, err := h.scope(req.Scope, req.ProjectDir)
	if err != nil {
		writeError(w, "update rule", err)
		return
	}
	res, err := h.svc.Update(r.Context(), rulestore.UpdateRequest{
		Selector: rulestore.Selector{Index: req.Index, Match: req.Match},
		Text:     req.NewRule,
		Category: req.Category,
		Scope:    scope,
	})
	if err != nil {
		writeError(w, "update rule", err)
		return
	}
	h.publish("updated", res.Location.Path, res.Rule)
	writeJSON(w, http.StatusOK, res)
}

// DeleteRule handles DELETE /api/rules.
//
//	@Summary		Delete a learned rule
//	@Tags			rules
//	@Produce		json
//	@Param			index	query		int		false	"1-based rule index"
//	@Param			match	query		string	false	"Case-insensitive substring of the rule"
//	@Param			scope	query		string	false	"Resolution mode"	Enums(auto, global)
//	@Param			dir		query		string	false	"Project directory to start from"
//	@Success		200		{object}	DeleteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse	"Ambiguous match"
//	@Security		BearerAuth
//	@Router			/rules [delete]
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	scope, err := h.queryScope(r)
	if err != nil {
		writeError(w, "delete rule", err)
		return
	}
	var sel rulestore.Selector
	if r.URL.Query().Has("index") {
		i, err := queryInt(r, "index")
		if err != nil {
			writeError(w, "delete rule", err)
			return
		}
		sel = rulestore.At(i)
	}
	sel.Match = r.URL.Query().Get("match")

	res, err := h.svc.Delete(r.Context(), rulestore.DeleteRequest{Selector: sel, Scope: scope})
	if err != nil {
		writeError(w, "delete rule", err)
		return
	}
	h.publish("deleted", res.Location.Path, res.Removed)
	writeJSON(w, http.StatusOK, res)
}

// Review handles GET /api/review.
//
//	@Summary		Bucket rules by age
//	@Tags			rules
//	@Produce		json
//	@Param			threshold	query		int		false	"Age in days from which a rule is old"
//	@Param			scope		query		string	false	"Resolution mode"	Enums(auto, global)
//	@Param			dir			query		string	false	"Project directory to start from"
//	@Success		200			{object}	ReviewResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/review [get]
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	scope, err := h.queryScope(r)
	if err != nil {
		writeError(w, "review rules", err)
		return
	}
	threshold, err := queryInt(r, "threshold")
	if err != nil {
		writeError(w, "review rules", err)
		return
	}
	res, err := h.svc.Review(r.Context(), rulestore.ReviewRequest{ThresholdDays: threshold, Scope: scope})
	if err != nil {
		writeError(w, "review rules", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History handles GET /api/history.
//
//	@Summary		Recent rule changes
//	@Tags			rules
//	@Produce		json
//	@Param			limit	query		int		false	"Max entries"
//	@Param			all		query		bool	false	"Include every document"
//	@Param			scope	query		string	false	"Resolution mode"	Enums(auto, global)
//	@Param			dir		query		string	false	"Project directory to start from"
//	@Success		200		{object}	HistoryResponse
//	@Failure		503		{object}	errResponse	"Journal disabled"
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	scope, err := h.queryScope(r)
	if err != nil {
		writeError(w, "rule history", err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, "rule history", err)
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	res, err := h.svc.History(r.Context(), rulestore.HistoryRequest{Limit: limit, AllDocuments: all, Scope: scope})
	if err != nil {
		writeError(w, "rule history", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
