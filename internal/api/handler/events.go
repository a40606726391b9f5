package handler

import (
	"net/http"

	"github.com/mcoot/kidfeed/internal/api/middleware"
	"github.com/mcoot/kidfeed/internal/api/sse"
)

// EventsHandler streams change notifications
type EventsHandler struct {
	hub *sse.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *sse.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		WriteError(w, NewInvalidRequestError("no account"))
		return
	}
	sse.ServeSSE(w, r, h.hub, account.Handle)
}
