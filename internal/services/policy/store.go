// Package policy reads and updates the parent-controlled settings of child accounts.
package policy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/kidfeed/internal/dependencies/clock"
	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
)

// Store applies the authorization rules around policy storage
type Store struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a policy Store
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Store {
	return &Store{
		storage: storage,
		clock:   clock,
		logger:  logger,
	}
}

// Get returns the child's current policy, or the defaults if none is stored.
// Store failures are returned so callers fail closed.
func (s *Store) Get(ctx context.Context, child model.Handle) (model.Policy, error) {
	p, err := s.storage.GetPolicy(ctx, child)
	if err != nil {
		if errors.Is(err, model.ErrPolicyNotFound) {
			return model.DefaultPolicy(), nil
		}
		return model.Policy{}, model.WrapStoreError("get policy", err)
	}
	return *p, nil
}

// Initialize stores the default policy for a newly created child
func (s *Store) Initialize(ctx context.Context, child model.Handle) error {
	return model.WrapStoreError("save policy", s.storage.SavePolicy(ctx, child, model.DefaultPolicy()))
}

// Update replaces the fields provided in patch. Only the child's linked parent
// may do this; a rejected update never reaches storage.
func (s *Store) Update(ctx context.Context, child model.Handle, patch model.PolicyPatch, acting *model.Account) (model.Policy, error) {
	if acting == nil || !acting.IsParent() {
		return model.Policy{}, model.ErrNotParent
	}

	target, err := s.storage.GetAccount(ctx, child)
	if err != nil {
		return model.Policy{}, model.WrapStoreError("get account", err)
	}
	if !target.IsChild() {
		return model.Policy{}, model.ErrNotApplicable
	}
	if target.ParentHandle != acting.Handle {
		return model.Policy{}, model.ErrNotLinkedParent
	}

	if err := patch.Validate(); err != nil {
		return model.Policy{}, err
	}

	updated, err := s.storage.UpdatePolicy(ctx, child, patch)
	if err != nil {
		return model.Policy{}, model.WrapStoreError("update policy", err)
	}

	s.logger.Info("policy updated",
		slog.String("child", string(child)),
		slog.String("parent", string(acting.Handle)),
		slog.Int("session_budget_minutes", updated.SessionBudgetMinutes),
		slog.Bool("content_filter_enabled", updated.ContentFilterEnabled),
		slog.Bool("post_approval_required", updated.PostApprovalRequired),
		slog.Bool("view_only", updated.ViewOnly),
	)

	event := model.ChangeEvent{Type: model.ChangePolicyUpdated, Handle: child, At: s.clock.Now()}
	if err := s.storage.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish policy change",
			slog.String("child", string(child)),
			slog.String("error", err.Error()),
		)
	}

	return *updated, nil
}
