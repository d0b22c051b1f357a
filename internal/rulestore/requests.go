package rulestore

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/rulekeeper/internal/locate"
)

// uncategorized is the category filter that selects legacy rules.
const uncategorized = "uncategorized"

// AddRequest describes a rule to append. Context is the correction or
// situation the rule was learned from.
type AddRequest struct {
	Text     string       `json:"rule"`
	Context  string       `json:"context,omitempty"`
	Category string       `json:"category,omitempty"`
	Scope    locate.Scope `json:"scope"`
}

// Validate validates the request.
func (r AddRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required),
	); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// ListRequest filters and shapes a listing.
type ListRequest struct {
	Category string       `json:"category,omitempty"`
	Grouped  bool         `json:"grouped,omitempty"`
	Scope    locate.Scope `json:"scope"`
}

// DeleteRequest selects a rule to remove.
type DeleteRequest struct {
	Selector Selector     `json:"selector"`
	Scope    locate.Scope `json:"scope"`
}

// UpdateRequest selects a rule and its replacement text.
type UpdateRequest struct {
	Selector Selector     `json:"selector"`
	Text     string       `json:"new_rule"`
	Category string       `json:"category,omitempty"`
	Scope    locate.Scope `json:"scope"`
}

// Validate validates the request.
func (r UpdateRequest) Validate() error {
	if err := r.Selector.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required),
	); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// ReviewRequest sets the age threshold; zero uses the store default.
type ReviewRequest struct {
	ThresholdDays int          `json:"threshold_days,omitempty"`
	Scope         locate.Scope `json:"scope"`
}

// HistoryRequest reads the change journal.
type HistoryRequest struct {
	Limit        int          `json:"limit,omitempty"`
	AllDocuments bool         `json:"all,omitempty"`
	Scope        locate.Scope `json:"scope"`
}
