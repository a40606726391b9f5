// Package notify implements in-process change notification for stores without a broker.
package notify

import (
	"context"
	"sync"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
)

// Notifier fans events out to subscribers synchronously
type Notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(model.ChangeEvent)
}

var _ storage.Notifier = (*Notifier)(nil)

// New creates a Notifier with no subscribers
func New() *Notifier {
	return &Notifier{subs: make(map[int]func(model.ChangeEvent))}
}

// Publish calls every subscriber with event
func (n *Notifier) Publish(ctx context.Context, event model.ChangeEvent) error {
	n.mu.RLock()
	fns := make([]func(model.ChangeEvent), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
	return nil
}

// Subscribe registers fn until the returned function is called
func (n *Notifier) Subscribe(fn func(model.ChangeEvent)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Count returns the number of subscribers
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
