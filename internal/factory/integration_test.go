package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/approval"
	"github.com/mcoot/kidfeed/internal/services/auth"
	"github.com/mcoot/kidfeed/internal/services/session"
	"github.com/mcoot/kidfeed/internal/storage/sqlstore"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Close())
}

func (s *IntegrationSuite) signupFamily() (parentToken, childToken string) {
	parent, err := s.app.Controller.Signup(s.ctx, auth.Registration{
		Handle: "mum", Password: "parentpw", DisplayName: "Mum", Role: model.RoleParent, Pin: "4321",
	})
	s.Require().NoError(err)

	child, err := s.app.Controller.Signup(s.ctx, auth.Registration{
		Handle: "kid", Password: "kidpw", DisplayName: "Kid", Role: model.RoleChild,
		ParentHandle: "mum", ParentPin: "4321",
	})
	s.Require().NoError(err)
	return parent.Token, child.Token
}

// Test: a child's day from first post to forced logout
func (s *IntegrationSuite) TestChildDay() {
	parentToken, childToken := s.signupFamily()

	// Step 1: the child's first post waits for the parent's PIN
	submitted, err := s.app.Controller.SubmitPost(s.ctx, childToken, "look at my drawing")
	s.Require().NoError(err)
	s.Equal(approval.StatePendingApproval, submitted.State)

	// Step 2: the parent types the PIN on the child's device
	post, err := s.app.Controller.ApprovePost(s.ctx, childToken, "4321")
	s.Require().NoError(err)

	// Step 3: the parent likes it
	liked, err := s.app.Controller.ToggleLike(s.ctx, parentToken, post.ID)
	s.Require().NoError(err)
	s.Equal(1, liked.Likes)

	// Step 4: the parent shortens the budget; the running session keeps its own
	budget := 15
	_, err = s.app.Controller.UpdatePolicy(s.ctx, parentToken, "kid", model.PolicyPatch{SessionBudgetMinutes: &budget})
	s.Require().NoError(err)

	s.app.MockClock.Advance(45 * time.Minute)
	status, err := s.app.Controller.SessionStatus(s.ctx, childToken)
	s.Require().NoError(err)
	s.Equal(15, status.RemainingMinutes)

	// Step 5: time runs out
	s.app.MockClock.Advance(15 * time.Minute)
	s.app.Controller.TickAll(s.ctx)

	_, err = s.app.Controller.Feed(s.ctx, childToken)
	s.ErrorIs(err, model.ErrSessionExpired)

	// Step 6: logging in again starts a session with the new budget
	again, err := s.app.Controller.Login(s.ctx, "kid", "kidpw")
	s.Require().NoError(err)
	s.Equal(session.StateActive, again.Status.State)
	s.Equal(15, again.Status.RemainingMinutes)

	items, err := s.app.Controller.Feed(s.ctx, again.Token)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("look at my drawing", items[0].Post.Content)
	s.Equal("1h ago", items[0].Age)
}

// Test: change events reach the right event streams
func (s *IntegrationSuite) TestEventsReachSubscribers() {
	parentToken, childToken := s.signupFamily()

	events := make(chan model.ChangeEvent, 16)
	unsubscribe := s.app.Storage.Subscribe(func(e model.ChangeEvent) { events <- e })
	defer unsubscribe()

	_, err := s.app.Controller.SubmitPost(s.ctx, parentToken, "dinner at six")
	s.Require().NoError(err)
	viewOnly := true
	_, err = s.app.Controller.UpdatePolicy(s.ctx, parentToken, "kid", model.PolicyPatch{ViewOnly: &viewOnly})
	s.Require().NoError(err)

	s.Equal(model.ChangePostCreated, (<-events).Type)
	policyEvent := <-events
	s.Equal(model.ChangePolicyUpdated, policyEvent.Type)
	s.Equal(model.Handle("kid"), policyEvent.Handle)

	_, err = s.app.Controller.SubmitPost(s.ctx, childToken, "can I post?")
	s.ErrorIs(err, model.ErrViewOnly)
}

func (s *IntegrationSuite) TestTwoChildrenHaveIndependentSessions() {
	_, first := s.signupFamily()
	s.app.MockClock.Advance(30 * time.Minute)

	second, err := s.app.Controller.Signup(s.ctx, auth.Registration{
		Handle: "kid2", Password: "kidpw", DisplayName: "Kid Two", Role: model.RoleChild,
		ParentHandle: "mum", ParentPin: "4321",
	})
	s.Require().NoError(err)
	s.Equal(60, second.Status.RemainingMinutes)

	s.app.MockClock.Advance(30 * time.Minute)
	s.app.Controller.TickAll(s.ctx)

	_, err = s.app.Controller.Feed(s.ctx, first)
	s.ErrorIs(err, model.ErrSessionExpired)
	_, err = s.app.Controller.Feed(s.ctx, second.Token)
	s.NoError(err)
	s.Equal(1, s.app.Tracker.Count())
}

func TestNewDefaultsToMemory(t *testing.T) {
	a, err := New(t.Context(), Config{BcryptCost: 4})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Controller.Signup(t.Context(), auth.Registration{
		Handle: "mum", Password: "pw", DisplayName: "Mum", Role: model.RoleParent, Pin: "1234",
	})
	assert.NoError(t, err)
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	_, err := New(t.Context(), Config{StorageType: "cassette"})
	assert.Error(t, err)
}

func TestNewRequiresBackendConfig(t *testing.T) {
	_, err := New(t.Context(), Config{StorageType: StorageTypeRedis})
	assert.Error(t, err)

	_, err = New(t.Context(), Config{StorageType: StorageTypeSQL})
	assert.Error(t, err)
}

func TestNewWithSQLite(t *testing.T) {
	a, err := New(t.Context(), Config{
		StorageType: StorageTypeSQL,
		SQLConfig: &sqlstore.Config{
			Driver:       sqlstore.DriverSQLite,
			DSN:          "file:factorytest?mode=memory&cache=shared&_foreign_keys=on",
			MaxOpenConns: 1,
		},
		BcryptCost: 4,
	})
	require.NoError(t, err)
	defer a.Close()

	parent, err := a.Controller.Signup(t.Context(), auth.Registration{
		Handle: "mum", Password: "pw", DisplayName: "Mum", Role: model.RoleParent, Pin: "1234",
	})
	require.NoError(t, err)

	result, err := a.Controller.SubmitPost(t.Context(), parent.Token, "hello from sqlite")
	require.NoError(t, err)
	require.NotNil(t, result.Post)

	items, err := a.Controller.Feed(t.Context(), parent.Token)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "hello from sqlite", items[0].Post.Content)
}
