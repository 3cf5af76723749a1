package main

import (
	"time"

	"github.com/copperkey/renewals/compare"
	"github.com/copperkey/renewals/review"
	"github.com/copperkey/renewals/snapshot"
)

// API request and response models.

// CompareRequest carries the snapshot pair. Baseline is optional; the
// comparison degrades to renewal-only mode without it. RenewalID, when
// supplied, keys the reviewed-flag join.
type CompareRequest struct {
	RenewalID string             `json:"renewalId,omitempty"`
	Baseline  *snapshot.Snapshot `json:"baseline,omitempty"`
	Renewal   *snapshot.Snapshot `json:"renewal"`
}

// CompareResponse is the full comparison report plus the renewal key the
// review surface uses for acknowledgement calls.
type CompareResponse struct {
	RenewalID string `json:"renewalId"`
	*compare.Report
}

// ReviewRequest toggles one reviewed flag.
type ReviewRequest struct {
	RuleID   string `json:"ruleId"`
	Field    string `json:"field"`
	Reviewed bool   `json:"reviewed"`
	Actor    string `json:"actor,omitempty"`
}

// ReviewListResponse lists the persisted flags for one renewal.
type ReviewListResponse struct {
	Reviews []review.Flag `json:"reviews"`
}

// CreateRuleRequest creates an agency custom check rule.
type CreateRuleRequest struct {
	Name        string           `json:"name"`
	Expression  string           `json:"expression"`
	Category    compare.Category `json:"category"`
	Severity    compare.Severity `json:"severity"`
	Blocker     bool             `json:"blocker"`
	Message     string           `json:"message"`
	AgentAction string           `json:"agentAction,omitempty"`
	Active      bool             `json:"active"`
}

// UpdateRuleRequest updates an agency custom check rule.
type UpdateRuleRequest struct {
	Name        string           `json:"name"`
	Expression  string           `json:"expression"`
	Category    compare.Category `json:"category"`
	Severity    compare.Severity `json:"severity"`
	Blocker     bool             `json:"blocker"`
	Message     string           `json:"message"`
	AgentAction string           `json:"agentAction,omitempty"`
	Active      bool             `json:"active"`
}

// RuleResponse represents a custom rule in API responses.
type RuleResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Expression  string           `json:"expression"`
	Category    compare.Category `json:"category"`
	Severity    compare.Severity `json:"severity"`
	Blocker     bool             `json:"blocker"`
	Message     string           `json:"message"`
	AgentAction string           `json:"agentAction,omitempty"`
	Active      bool             `json:"active"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func ruleResponse(r *compare.CustomRule) RuleResponse {
	return RuleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Expression:  r.Expression,
		Category:    r.Category,
		Severity:    r.Severity,
		Blocker:     r.Blocker,
		Message:     r.Message,
		AgentAction: r.AgentAction,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
