// Package session tracks time-boxed child sessions against their budget.
package session

import (
	"sync"
	"time"

	"github.com/mcoot/kidfeed/internal/dependencies/clock"
	"github.com/mcoot/kidfeed/internal/model"
)

// State of a session as reported by Tick
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
)

// Status is the result of a tick
type Status struct {
	State            State
	RemainingMinutes int
}

// Active returns an active status with the given remaining minutes
func Active(remaining int) Status {
	return Status{State: StateActive, RemainingMinutes: remaining}
}

// Expired is the status of a session whose budget is spent
var Expired = Status{State: StateExpired}

// Session is a running child session. Budget is fixed at start.
type Session struct {
	Handle        model.Handle
	StartedAt     time.Time
	BudgetMinutes int

	mu       sync.Mutex
	lastSeen time.Time
	expired  bool
}

func newSession(handle model.Handle, budget int, now time.Time) *Session {
	return &Session{
		Handle:        handle,
		StartedAt:     now,
		BudgetMinutes: budget,
		lastSeen:      now,
	}
}

// Remaining returns budget minus whole elapsed minutes, which may be zero or negative
func (s *Session) Remaining(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Before(s.lastSeen) {
		now = s.lastSeen
	}
	return s.remaining(now)
}

// IsExpired reports whether no budget remains at now
func (s *Session) IsExpired(now time.Time) bool {
	return s.Remaining(now) <= 0
}

// Tick reports the session status at now. fired is true only on the first tick
// that observes expiry; later ticks report Expired with fired false.
func (s *Session) Tick(now time.Time) (status Status, fired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.remaining(s.observe(now))
	if remaining > 0 && !s.expired {
		return Active(remaining), false
	}
	if s.expired {
		return Expired, false
	}
	s.expired = true
	return Expired, true
}

// HasExpired reports whether a tick has already observed expiry
func (s *Session) HasExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// observe clamps now so elapsed time never goes backwards
func (s *Session) observe(now time.Time) time.Time {
	if now.Before(s.lastSeen) {
		return s.lastSeen
	}
	s.lastSeen = now
	return now
}

func (s *Session) remaining(now time.Time) int {
	elapsed := now.Sub(s.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return s.BudgetMinutes - int(elapsed/time.Minute)
}

// Tracker holds the running session of each logged-in child
type Tracker struct {
	clock clock.Clock

	mu       sync.Mutex
	sessions map[model.Handle]*Session
}

// NewTracker creates a Tracker
func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{
		clock:    clk,
		sessions: make(map[model.Handle]*Session),
	}
}

// Start begins a session for a child. A running session is never replaced;
// it must be ended first.
func (t *Tracker) Start(account *model.Account, budgetMinutes int) (*Session, error) {
	if !account.IsChild() {
		return nil, model.ErrNotApplicable
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[account.Handle]; ok {
		return nil, model.ErrSessionActive
	}
	s := newSession(account.Handle, budgetMinutes, t.clock.Now())
	t.sessions[account.Handle] = s
	return s, nil
}

// Get returns the running session for handle
func (t *Tracker) Get(handle model.Handle) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[handle]
	return s, ok
}

// End clears the session for handle if it is s. Ending a session that has
// already been replaced is a no-op.
func (t *Tracker) End(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.sessions[s.Handle]; ok && current == s {
		delete(t.sessions, s.Handle)
	}
}

// Count returns the number of running sessions
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
