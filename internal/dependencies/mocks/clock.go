package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/kidfeed/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// Tickers created from it fire only when the clock is advanced.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*mockTicker
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by the given duration
func (c *MockClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set sets the clock to the given time, firing any tickers that are due
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	tickers := make([]*mockTicker, len(c.tickers))
	copy(tickers, c.tickers)
	c.mu.Unlock()

	for _, tk := range tickers {
		tk.fireUntil(t)
	}
}

// NewTicker returns a ticker driven by Advance and Set
func (c *MockClock) NewTicker(d time.Duration) clock.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &mockTicker{
		owner:    c,
		interval: d,
		next:     c.current.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, tk)
	return tk
}

// TickerCount returns the number of live tickers
func (c *MockClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *MockClock) removeTicker(tk *mockTicker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.tickers {
		if t == tk {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}

type mockTicker struct {
	owner    *MockClock
	interval time.Duration

	mu   sync.Mutex
	next time.Time
	ch   chan time.Time
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }

func (t *mockTicker) Stop() {
	t.owner.removeTicker(t)
}

// fireUntil delivers at most one pending tick, dropping extras like time.Ticker does
func (t *mockTicker) fireUntil(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fired := false
	for !t.next.After(now) {
		if !fired {
			select {
			case t.ch <- t.next:
			default:
			}
			fired = true
		}
		t.next = t.next.Add(t.interval)
	}
}
