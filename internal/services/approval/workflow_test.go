package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/credential"
)

type WorkflowSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	pinHash   string
	workflow  *Workflow
	published []string
	failNext  error
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	hasher := credential.NewBcrypt(bcrypt.MinCost)
	hash, err := hasher.Hash("1234")
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.pinHash = hash
	s.workflow = NewWorkflow(hasher)
	s.published = nil
	s.failNext = nil
}

func (s *WorkflowSuite) publish(ctx context.Context, content string) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.published = append(s.published, content)
	return nil
}

// Submit tests

func (s *WorkflowSuite) TestSubmitWithApprovalRequiredDefers() {
	state, err := s.workflow.Submit(s.ctx, "hello", true, s.now, s.publish)
	s.Require().NoError(err)

	s.Equal(StatePendingApproval, state)
	s.Empty(s.published)
	s.Equal(&PendingPost{Content: "hello", SubmittedAt: s.now}, s.workflow.Pending())
}

func (s *WorkflowSuite) TestSubmitWithoutApprovalBypasses() {
	state, err := s.workflow.Submit(s.ctx, "hello", false, s.now, s.publish)
	s.Require().NoError(err)

	s.Equal(StateApproved, state)
	s.Equal([]string{"hello"}, s.published)
	s.Nil(s.workflow.Pending())
}

func (s *WorkflowSuite) TestBypassPublishFailureReturnsToIdle() {
	s.failNext = errors.New("store down")

	state, err := s.workflow.Submit(s.ctx, "hello", false, s.now, s.publish)
	s.Error(err)
	s.Equal(StateIdle, state)
	s.Nil(s.workflow.Pending())
}

func (s *WorkflowSuite) TestSecondSubmitWhilePendingFails() {
	_, _ = s.workflow.Submit(s.ctx, "first", true, s.now, s.publish)

	state, err := s.workflow.Submit(s.ctx, "second", true, s.now, s.publish)
	s.ErrorIs(err, model.ErrApprovalAlreadyPending)
	s.Equal(StatePendingApproval, state)
	s.Equal("first", s.workflow.Pending().Content)

	_, err = s.workflow.Submit(s.ctx, "third", false, s.now, s.publish)
	s.ErrorIs(err, model.ErrApprovalAlreadyPending)
	s.Empty(s.published)
}

// Verify tests

func (s *WorkflowSuite) TestVerifyCorrectPinPublishesOnce() {
	_, _ = s.workflow.Submit(s.ctx, "hello", true, s.now, s.publish)

	content, err := s.workflow.Verify(s.ctx, "1234", s.pinHash, s.publish)
	s.Require().NoError(err)
	s.Equal("hello", content)
	s.Equal(StateApproved, s.workflow.State())

	_, err = s.workflow.Verify(s.ctx, "1234", s.pinHash, s.publish)
	s.ErrorIs(err, model.ErrNoPendingApproval)
	s.Equal([]string{"hello"}, s.published)
}

func (s *WorkflowSuite) TestVerifyWrongPinStaysPending() {
	_, _ = s.workflow.Submit(s.ctx, "hello", true, s.now, s.publish)

	for i := 0; i < 5; i++ {
		_, err := s.workflow.Verify(s.ctx, "0000", s.pinHash, s.publish)
		s.ErrorIs(err, model.ErrIncorrectPin)
		s.ErrorIs(err, model.ErrAuth)
	}

	s.Equal(StatePendingApproval, s.workflow.State())
	s.Empty(s.published)

	content, err := s.workflow.Verify(s.ctx, "1234", s.pinHash, s.publish)
	s.Require().NoError(err)
	s.Equal("hello", content)
}

func (s *WorkflowSuite) TestVerifyPublishFailureKeepsPending() {
	_, _ = s.workflow.Submit(s.ctx, "hello", true, s.now, s.publish)
	s.failNext = errors.New("store down")

	_, err := s.workflow.Verify(s.ctx, "1234", s.pinHash, s.publish)
	s.Error(err)
	s.Equal(StatePendingApproval, s.workflow.State())
	s.Equal("hello", s.workflow.Pending().Content)

	_, err = s.workflow.Verify(s.ctx, "1234", s.pinHash, s.publish)
	s.Require().NoError(err)
	s.Equal([]string{"hello"}, s.published)
}

func (s *WorkflowSuite) TestVerifyWhenIdle() {
	_, err := s.workflow.Verify(s.ctx, "1234", s.pinHash, s.publish)
	s.ErrorIs(err, model.ErrNoPendingApproval)
}

func (s *WorkflowSuite) TestVerifyWithoutStoredPinFails() {
	_, _ = s.workflow.Submit(s.ctx, "hello", true, s.now, s.publish)

	_, err := s.workflow.Verify(s.ctx, "1234", "", s.publish)
	s.ErrorIs(err, model.ErrIncorrectPin)
}

// Cancel and Abandon tests

func (s *WorkflowSuite) TestCancelDiscardsContent() {
	_, _ = s.workflow.Submit(s.ctx, "hello", true, s.now, s.publish)

	s.Require().NoError(s.workflow.Cancel())
	s.Equal(StateCancelled, s.workflow.State())
	s.Nil(s.workflow.Pending())

	state, err := s.workflow.Submit(s.ctx, "again", true, s.now, s.publish)
	s.Require().NoError(err)
	s.Equal(StatePendingApproval, state)
}

func (s *WorkflowSuite) TestCancelWhenIdle() {
	s.ErrorIs(s.workflow.Cancel(), model.ErrNoPendingApproval)
}

func (s *WorkflowSuite) TestAbandonReturnsLostPost() {
	_, _ = s.workflow.Submit(s.ctx, "hello", true, s.now, s.publish)

	lost := s.workflow.Abandon()
	s.Require().NotNil(lost)
	s.Equal("hello", lost.Content)
	s.Nil(s.workflow.Pending())
	s.Empty(s.published)
}

func (s *WorkflowSuite) TestAbandonWhenIdle() {
	s.Nil(s.workflow.Abandon())
	s.Equal(StateIdle, s.workflow.State())
}
