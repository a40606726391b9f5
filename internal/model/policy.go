package model

import "fmt"

// Session budget bounds in minutes
const (
	MinSessionBudgetMinutes     = 15
	MaxSessionBudgetMinutes     = 480
	DefaultSessionBudgetMinutes = 60
)

// Policy is the parent-controlled configuration for one child account
type Policy struct {
	SessionBudgetMinutes int
	ContentFilterEnabled bool
	PostApprovalRequired bool
	ViewOnly             bool
}

// DefaultPolicy returns the policy every child starts with
func DefaultPolicy() Policy {
	return Policy{
		SessionBudgetMinutes: DefaultSessionBudgetMinutes,
		ContentFilterEnabled: true,
		PostApprovalRequired: true,
		ViewOnly:             false,
	}
}

// PolicyPatch is a partial policy update. Nil fields are left unchanged.
type PolicyPatch struct {
	SessionBudgetMinutes *int
	ContentFilterEnabled *bool
	PostApprovalRequired *bool
	ViewOnly             *bool
}

// IsEmpty reports whether the patch changes nothing
func (p PolicyPatch) IsEmpty() bool {
	return p.SessionBudgetMinutes == nil &&
		p.ContentFilterEnabled == nil &&
		p.PostApprovalRequired == nil &&
		p.ViewOnly == nil
}

// Validate checks the provided fields
func (p PolicyPatch) Validate() error {
	if p.IsEmpty() {
		return &ValidationError{Field: "policy", Message: "No settings to update"}
	}
	if p.SessionBudgetMinutes != nil {
		m := *p.SessionBudgetMinutes
		if m < MinSessionBudgetMinutes || m > MaxSessionBudgetMinutes {
			return &ValidationError{
				Field: "session_budget_minutes",
				Message: fmt.Sprintf("Time limit must be between %d and %d minutes",
					MinSessionBudgetMinutes, MaxSessionBudgetMinutes),
			}
		}
	}
	return nil
}

// Apply returns base with the provided fields replaced
func (p PolicyPatch) Apply(base Policy) Policy {
	if p.SessionBudgetMinutes != nil {
		base.SessionBudgetMinutes = *p.SessionBudgetMinutes
	}
	if p.ContentFilterEnabled != nil {
		base.ContentFilterEnabled = *p.ContentFilterEnabled
	}
	if p.PostApprovalRequired != nil {
		base.PostApprovalRequired = *p.PostApprovalRequired
	}
	if p.ViewOnly != nil {
		base.ViewOnly = *p.ViewOnly
	}
	return base
}
