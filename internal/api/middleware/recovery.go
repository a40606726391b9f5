package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/kidfeed/internal/api/apierr"
	"github.com/mcoot/kidfeed/internal/middleware"
)

// Recovery creates panic recovery middleware for the API.
// Panics become a JSON 500.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

// Logging creates access logging middleware for the API
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}

// RequestID tags each request with an ID
func RequestID() func(http.Handler) http.Handler {
	return middleware.RequestID
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
