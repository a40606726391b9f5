package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/kidfeed/internal/api/handler"
	"github.com/mcoot/kidfeed/internal/api/middleware"
	"github.com/mcoot/kidfeed/internal/api/response"
	"github.com/mcoot/kidfeed/internal/api/sse"
	"github.com/mcoot/kidfeed/internal/services/app"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger     *slog.Logger
	Controller *app.Controller
	Hub        *sse.Hub
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	accountHandler := handler.NewAccountHandler(cfg.Controller)
	feedHandler := handler.NewFeedHandler(cfg.Controller)
	policyHandler := handler.NewPolicyHandler(cfg.Controller)
	eventsHandler := handler.NewEventsHandler(cfg.Hub)

	authMiddleware := middleware.Auth(cfg.Controller)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestID())
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	// Public routes
	api.HandleFunc("/accounts", accountHandler.Signup).Methods(http.MethodPost)
	api.HandleFunc("/sessions", accountHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/avatars", accountHandler.Avatars).Methods(http.MethodGet)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Everything else needs a login
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/sessions/current", accountHandler.Logout).Methods(http.MethodDelete)
	protected.HandleFunc("/session", accountHandler.SessionStatus).Methods(http.MethodGet)
	protected.HandleFunc("/me", accountHandler.Me).Methods(http.MethodGet)
	protected.HandleFunc("/me/avatar", accountHandler.UpdateAvatar).Methods(http.MethodPut)

	protected.HandleFunc("/feed", feedHandler.Feed).Methods(http.MethodGet)
	protected.HandleFunc("/posts", feedHandler.CreatePost).Methods(http.MethodPost)
	protected.HandleFunc("/posts/pending/approve", feedHandler.ApprovePending).Methods(http.MethodPost)
	protected.HandleFunc("/posts/pending", feedHandler.CancelPending).Methods(http.MethodDelete)
	protected.HandleFunc("/posts/{id}/like", feedHandler.ToggleLike).Methods(http.MethodPost)

	protected.HandleFunc("/children/{handle}/policy", policyHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/children/{handle}/policy", policyHandler.Update).Methods(http.MethodPatch)

	if cfg.Hub != nil {
		protected.HandleFunc("/events", eventsHandler.Stream).Methods(http.MethodGet)
	}

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, response.Health{Status: "ok"})
}
