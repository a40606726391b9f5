package app

import (
	"context"
	"log/slog"
)

// TickAll ticks every child login, forcing logout where the budget is spent,
// and drops logins whose token has expired. Safe to call repeatedly.
func (c *Controller) TickAll(ctx context.Context) {
	c.mu.RLock()
	tokens := make([]string, 0, len(c.states))
	for token := range c.states {
		tokens = append(tokens, token)
	}
	c.mu.RUnlock()

	for _, token := range tokens {
		unlock := c.locks.Lock(token)
		if st, err := c.resolve(token); err == nil {
			c.tick(ctx, st)
		}
		unlock()
	}

	c.pruneTombstones()
}

func (c *Controller) pruneTombstones() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, t := range c.tombstones {
		if now.After(t.expiresAt) {
			delete(c.tombstones, token)
		}
	}
}

// RunTicker calls TickAll on every tick of the configured interval until ctx is done
func (c *Controller) RunTicker(ctx context.Context) {
	ticker := c.clock.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.logger.Info("session ticker started", slog.Duration("interval", c.cfg.TickInterval))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("session ticker stopped")
			return
		case <-ticker.C():
			c.TickAll(ctx)
		}
	}
}

// LoginCount returns the number of live logins
func (c *Controller) LoginCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}
