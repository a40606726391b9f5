package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/kidfeed/internal/dependencies/mocks"
	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/session"
)

var (
	child  = &model.Account{Handle: "kid", Role: model.RoleChild, ParentHandle: "mum"}
	parent = &model.Account{Handle: "mum", Role: model.RoleParent}
)

func startSession(t *testing.T, clk *mocks.MockClock) *session.Session {
	t.Helper()
	sess, err := session.NewTracker(clk).Start(child, 60)
	require.NoError(t, err)
	return sess
}

func TestEvaluateChild(t *testing.T) {
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	now := clk.Now()

	approval := model.DefaultPolicy()
	direct := model.DefaultPolicy()
	direct.PostApprovalRequired = false
	viewOnly := model.DefaultPolicy()
	viewOnly.ViewOnly = true
	viewOnlyDirect := direct
	viewOnlyDirect.ViewOnly = true

	tests := []struct {
		name       string
		action     Action
		policy     model.Policy
		noSession  bool
		elapsed    time.Duration
		wantKind   Kind
		wantReason error
	}{
		{"view feed allowed", ActionViewFeed, approval, false, 0, Allow, nil},
		{"view feed allowed when view-only", ActionViewFeed, viewOnly, false, 0, Allow, nil},
		{"view feed allowed when expired", ActionViewFeed, approval, false, 61 * time.Minute, Allow, nil},
		{"post deferred for approval", ActionCreatePost, approval, false, 0, Defer, model.ErrApprovalRequired},
		{"post allowed without approval", ActionCreatePost, direct, false, 0, Allow, nil},
		{"post denied when view-only", ActionCreatePost, viewOnly, false, 0, Deny, model.ErrViewOnly},
		{"post denied when view-only regardless of approval", ActionCreatePost, viewOnlyDirect, false, 0, Deny, model.ErrViewOnly},
		{"post denied when view-only and expired", ActionCreatePost, viewOnly, false, 61 * time.Minute, Deny, model.ErrViewOnly},
		{"post denied when expired", ActionCreatePost, direct, false, 60 * time.Minute, Deny, model.ErrSessionExpired},
		{"post denied without session", ActionCreatePost, direct, true, 0, Deny, model.ErrSessionExpired},
		{"post allowed in last minute", ActionCreatePost, direct, false, 59 * time.Minute, Allow, nil},
		{"like allowed", ActionLike, approval, false, 0, Allow, nil},
		{"like denied when view-only", ActionLike, viewOnly, false, 0, Deny, model.ErrViewOnly},
		{"refresh allowed for child", ActionRefreshSession, approval, false, 0, Allow, nil},
		{"unknown action denied", Action("delete_everything"), approval, false, 0, Deny, model.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sess *session.Session
			if !tt.noSession {
				sess = startSession(t, clk)
			}

			v := Evaluate(tt.action, child, tt.policy, sess, now.Add(tt.elapsed))

			assert.Equal(t, tt.wantKind, v.Kind)
			if tt.wantReason != nil {
				assert.ErrorIs(t, v.Reason, tt.wantReason)
			} else {
				assert.NoError(t, v.Reason)
			}
		})
	}
}

func TestEvaluateViewOnlyDeniesWithForbidden(t *testing.T) {
	policy := model.DefaultPolicy()
	policy.ViewOnly = true

	for _, action := range []Action{ActionCreatePost, ActionLike} {
		v := Evaluate(action, child, policy, nil, time.Now())
		assert.ErrorIs(t, v.Err(), model.ErrForbidden, action)
	}
}

func TestEvaluateParent(t *testing.T) {
	policy := model.DefaultPolicy()
	policy.ViewOnly = true

	for _, action := range []Action{ActionViewFeed, ActionCreatePost, ActionLike} {
		v := Evaluate(action, parent, policy, nil, time.Now())
		assert.True(t, v.Allowed(), action)
	}

	v := Evaluate(ActionRefreshSession, parent, policy, nil, time.Now())
	assert.Equal(t, Deny, v.Kind)
	assert.ErrorIs(t, v.Err(), model.ErrNotApplicable)
}

func TestEvaluateDoesNotFireExpiry(t *testing.T) {
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	sess := startSession(t, clk)
	policy := model.DefaultPolicy()
	policy.PostApprovalRequired = false
	later := clk.Now().Add(61 * time.Minute)

	v := Evaluate(ActionCreatePost, child, policy, sess, later)
	assert.ErrorIs(t, v.Err(), model.ErrSessionExpired)

	_, fired := sess.Tick(later)
	assert.True(t, fired)
}

func TestVerdictErr(t *testing.T) {
	assert.NoError(t, allow().Err())
	assert.NoError(t, deferApproval().Err())
	assert.ErrorIs(t, deny(model.ErrViewOnly).Err(), model.ErrViewOnly)
}
