package sse

import (
	"encoding/json"
	"log/slog"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
)

// Event names sent to clients
const (
	EventFeedChanged    = "feed-changed"
	EventPolicyUpdated  = "policy-updated"
	EventSessionExpired = "session-expired"
)

// Broadcaster turns record-store change events into SSE events
type Broadcaster struct {
	hub    *Hub
	logger *slog.Logger
}

// NewBroadcaster creates a Broadcaster
func NewBroadcaster(hub *Hub, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		logger: logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Attach subscribes to the notifier and returns the unsubscribe func
func (b *Broadcaster) Attach(n storage.Notifier) func() {
	return n.Subscribe(b.Handle)
}

// Handle routes one change event. Feed changes go to everyone; policy updates
// and forced logouts go only to the affected child.
func (b *Broadcaster) Handle(event model.ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("sse failed to encode event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()))
		return
	}

	switch event.Type {
	case model.ChangePostCreated, model.ChangeLikeChanged:
		b.hub.Broadcast(EventFeedChanged, string(data))
	case model.ChangePolicyUpdated:
		b.hub.SendTo(event.Handle, EventPolicyUpdated, string(data))
	case model.ChangeForcedLogout:
		b.hub.SendTo(event.Handle, EventSessionExpired, string(data))
	default:
		b.logger.Debug("sse ignoring event", slog.String("type", string(event.Type)))
	}
}
