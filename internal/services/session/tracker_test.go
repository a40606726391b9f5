package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/kidfeed/internal/dependencies/mocks"
	"github.com/mcoot/kidfeed/internal/model"
)

type TrackerSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	tracker *Tracker
	child   *model.Account
	parent  *model.Account
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.tracker = NewTracker(s.clock)
	s.child = &model.Account{Handle: "kid", Role: model.RoleChild}
	s.parent = &model.Account{Handle: "mum", Role: model.RoleParent}
}

// Start tests

func (s *TrackerSuite) TestStartForChild() {
	sess, err := s.tracker.Start(s.child, 60)
	s.Require().NoError(err)

	s.Equal(model.Handle("kid"), sess.Handle)
	s.Equal(60, sess.BudgetMinutes)
	s.Equal(s.clock.Now(), sess.StartedAt)
	s.Equal(60, sess.Remaining(s.clock.Now()))
}

func (s *TrackerSuite) TestStartForParentNotApplicable() {
	_, err := s.tracker.Start(s.parent, 60)
	s.ErrorIs(err, model.ErrNotApplicable)
	s.Equal(0, s.tracker.Count())
}

func (s *TrackerSuite) TestStartNeverReplacesRunningSession() {
	first, _ := s.tracker.Start(s.child, 60)
	s.clock.Advance(10 * time.Minute)

	_, err := s.tracker.Start(s.child, 60)
	s.ErrorIs(err, model.ErrSessionActive)

	current, ok := s.tracker.Get("kid")
	s.Require().True(ok)
	s.Same(first, current)
	s.Equal(50, current.Remaining(s.clock.Now()))
}

func (s *TrackerSuite) TestStartAfterEnd() {
	first, _ := s.tracker.Start(s.child, 60)
	s.tracker.End(first)
	s.clock.Advance(10 * time.Minute)

	second, err := s.tracker.Start(s.child, 30)
	s.Require().NoError(err)
	s.Equal(30, second.Remaining(s.clock.Now()))
}

func (s *TrackerSuite) TestEndIgnoresReplacedSession() {
	first, _ := s.tracker.Start(s.child, 60)
	s.tracker.End(first)
	second, _ := s.tracker.Start(s.child, 60)

	s.tracker.End(first)

	current, ok := s.tracker.Get("kid")
	s.Require().True(ok)
	s.Same(second, current)
}

// Remaining tests

func (s *TrackerSuite) TestRemainingFloorsWholeMinutes() {
	sess, _ := s.tracker.Start(s.child, 60)
	start := s.clock.Now()

	s.Equal(60, sess.Remaining(start.Add(59*time.Second)))
	s.Equal(59, sess.Remaining(start.Add(60*time.Second)))
	s.Equal(59, sess.Remaining(start.Add(119*time.Second)))
	s.Equal(1, sess.Remaining(start.Add(59*time.Minute)))
	s.False(sess.IsExpired(start.Add(59*time.Minute + 59*time.Second)))
	s.True(sess.IsExpired(start.Add(60 * time.Minute)))
}

func (s *TrackerSuite) TestRemainingNonIncreasing() {
	sess, _ := s.tracker.Start(s.child, 60)
	start := s.clock.Now()

	previous := sess.Remaining(start)
	for sec := 0; sec <= 70*60; sec += 17 {
		r := sess.Remaining(start.Add(time.Duration(sec) * time.Second))
		s.LessOrEqual(r, previous)
		previous = r
	}
}

func (s *TrackerSuite) TestClockGoingBackwardsIsClamped() {
	sess, _ := s.tracker.Start(s.child, 60)
	start := s.clock.Now()

	status, _ := sess.Tick(start.Add(30 * time.Minute))
	s.Equal(Active(30), status)

	s.Equal(30, sess.Remaining(start.Add(5*time.Minute)))
	status, _ = sess.Tick(start.Add(5 * time.Minute))
	s.Equal(Active(30), status)
}

// Tick tests

func (s *TrackerSuite) TestTickActive() {
	sess, _ := s.tracker.Start(s.child, 60)

	status, fired := sess.Tick(s.clock.Now().Add(15 * time.Minute))
	s.False(fired)
	s.Equal(Active(45), status)
}

func (s *TrackerSuite) TestTickFiresExpiryExactlyOnce() {
	sess, _ := s.tracker.Start(s.child, 60)
	start := s.clock.Now()

	firedCount := 0
	for _, minute := range []int{61, 61, 62, 63} {
		status, fired := sess.Tick(start.Add(time.Duration(minute) * time.Minute))
		s.Equal(Expired, status)
		s.Equal(0, status.RemainingMinutes)
		if fired {
			firedCount++
		}
	}
	s.Equal(1, firedCount)
	s.True(sess.HasExpired())
}

func (s *TrackerSuite) TestTickStaysExpiredIfClockGoesBack() {
	sess, _ := s.tracker.Start(s.child, 60)
	start := s.clock.Now()

	_, fired := sess.Tick(start.Add(61 * time.Minute))
	s.True(fired)

	status, fired := sess.Tick(start.Add(10 * time.Minute))
	s.False(fired)
	s.Equal(Expired, status)
}
