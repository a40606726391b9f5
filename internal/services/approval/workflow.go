// Package approval holds a child's post while it waits for a parent's PIN.
package approval

import (
	"context"
	"time"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/credential"
)

// State of the approval workflow
type State string

const (
	StateIdle            State = "idle"
	StatePendingApproval State = "pending_approval"
	StateApproved        State = "approved"
	StateCancelled       State = "cancelled"
)

// PendingPost is content waiting for approval
type PendingPost struct {
	Content     string
	SubmittedAt time.Time
}

// PublishFunc performs the underlying post creation
type PublishFunc func(ctx context.Context, content string) error

// Workflow is the approval state machine for one session.
// Approved and cancelled accept a new submission just like idle.
// It is not safe for concurrent use; callers serialise access per session.
type Workflow struct {
	verifier credential.Verifier

	state   State
	pending *PendingPost
}

// NewWorkflow creates an idle Workflow
func NewWorkflow(verifier credential.Verifier) *Workflow {
	return &Workflow{
		verifier: verifier,
		state:    StateIdle,
	}
}

// State returns the current state
func (w *Workflow) State() State {
	return w.state
}

// Pending returns a copy of the pending post, or nil
func (w *Workflow) Pending() *PendingPost {
	if w.pending == nil {
		return nil
	}
	p := *w.pending
	return &p
}

// Submit starts the workflow for content. When approval is not required the
// content is published straight away; otherwise it is held until Verify.
// A second submission while one is pending fails and keeps the first.
func (w *Workflow) Submit(ctx context.Context, content string, approvalRequired bool, now time.Time, publish PublishFunc) (State, error) {
	if w.state == StatePendingApproval {
		return w.state, model.ErrApprovalAlreadyPending
	}

	if !approvalRequired {
		if err := publish(ctx, content); err != nil {
			w.state = StateIdle
			return w.state, err
		}
		w.state = StateApproved
		return w.state, nil
	}

	w.pending = &PendingPost{Content: content, SubmittedAt: now}
	w.state = StatePendingApproval
	return w.state, nil
}

// Verify checks pin against the parent's stored hash and, on a match, publishes
// the pending content. The post stays pending on a wrong PIN or a failed publish.
func (w *Workflow) Verify(ctx context.Context, pin, storedPinHash string, publish PublishFunc) (string, error) {
	if w.state != StatePendingApproval || w.pending == nil {
		return "", model.ErrNoPendingApproval
	}
	if !w.verifier.Verify(pin, storedPinHash) {
		return "", model.ErrIncorrectPin
	}

	content := w.pending.Content
	if err := publish(ctx, content); err != nil {
		return "", err
	}

	w.pending = nil
	w.state = StateApproved
	return content, nil
}

// Cancel discards the pending post
func (w *Workflow) Cancel() error {
	if w.state != StatePendingApproval {
		return model.ErrNoPendingApproval
	}
	w.pending = nil
	w.state = StateCancelled
	return nil
}

// Abandon discards any pending post and returns it so the loss can be reported
func (w *Workflow) Abandon() *PendingPost {
	lost := w.pending
	w.pending = nil
	if w.state == StatePendingApproval {
		w.state = StateCancelled
	}
	return lost
}
