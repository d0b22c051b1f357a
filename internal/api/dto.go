package api

import (
	"github.com/starford/rulekeeper/internal/rulestore"
)

// AddRuleRequest is the request body for adding a rule.
type AddRuleRequest struct {
	Rule       string `json:"rule" example:"Always use pytest, not unittest" validate:"required"`
	Context    string `json:"context,omitempty" example:"ran unittest and was corrected"`
	Category   string `json:"category,omitempty" example:"testing"`
	Scope      string `json:"scope,omitempty" example:"auto" enums:"auto,global"`
	ProjectDir string `json:"project_dir,omitempty" example:"/home/me/repo"`
}

// UpdateRuleRequest is the request body for rewriting a rule. Exactly one of
// Index and Match selects the rule.
type UpdateRuleRequest struct {
	Index      *int   `json:"index,omitempty" example:"2"`
	Match      string `json:"match,omitempty" example:"pytest"`
	NewRule    string `json:"new_rule" example:"Use pytest with -x" validate:"required"`
	Category   string `json:"category,omitempty" example:"testing"`
	Scope      string `json:"scope,omitempty" example:"auto" enums:"auto,global"`
	ProjectDir string `json:"project_dir,omitempty" example:"/home/me/repo"`
}

// ListResponse is the rule listing (aliased from the domain layer).
type ListResponse = rulestore.ListResult

// AddResponse reports an addition or a skipped duplicate.
type AddResponse = rulestore.AddResult

// UpdateResponse reports a rewritten rule.
type UpdateResponse = rulestore.UpdateResult

// DeleteResponse reports a removed rule.
type DeleteResponse = rulestore.DeleteResult

// ReviewResponse buckets rules by age.
type ReviewResponse = rulestore.ReviewResult

// HistoryResponse lists journaled changes.
type HistoryResponse = rulestore.HistoryResult
