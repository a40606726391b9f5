// Package gate decides whether an action may proceed under a child's policy.
package gate

import (
	"time"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/session"
)

// Action is a sensitive user action
type Action string

const (
	ActionViewFeed       Action = "view_feed"
	ActionCreatePost     Action = "create_post"
	ActionLike           Action = "like"
	ActionRefreshSession Action = "refresh_session"
)

// Kind of verdict
type Kind string

const (
	Allow Kind = "allow"
	Defer Kind = "defer"
	Deny  Kind = "deny"
)

// Verdict is the outcome of evaluating an action.
// Reason is model.ErrApprovalRequired for Defer and the denial error for Deny.
type Verdict struct {
	Kind   Kind
	Reason error
}

func allow() Verdict { return Verdict{Kind: Allow} }
func deny(reason error) Verdict { return Verdict{Kind: Deny, Reason: reason} }
func deferApproval() Verdict { return Verdict{Kind: Defer, Reason: model.ErrApprovalRequired} }

// Allowed reports whether the action may proceed directly
func (v Verdict) Allowed() bool { return v.Kind == Allow }

// Err returns the denial reason, or nil for Allow and Defer
func (v Verdict) Err() error {
	if v.Kind == Deny {
		return v.Reason
	}
	return nil
}

// Evaluate applies the decision table. It is pure: the session is only read.
// Parents are never restricted, except that sessions do not apply to them.
func Evaluate(action Action, actor *model.Account, policy model.Policy, sess *session.Session, now time.Time) Verdict {
	if !actor.IsChild() {
		if action == ActionRefreshSession {
			return deny(model.ErrNotApplicable)
		}
		return allow()
	}

	switch action {
	case ActionViewFeed:
		return allow()

	case ActionCreatePost:
		if policy.ViewOnly {
			return deny(model.ErrViewOnly)
		}
		if sess == nil || sess.HasExpired() || sess.IsExpired(now) {
			return deny(model.ErrSessionExpired)
		}
		if policy.PostApprovalRequired {
			return deferApproval()
		}
		return allow()

	case ActionLike:
		if policy.ViewOnly {
			return deny(model.ErrViewOnly)
		}
		return allow()

	case ActionRefreshSession:
		return allow()
	}

	return deny(model.ErrForbidden)
}
