package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/kidfeed/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeIncorrectPin           = "INCORRECT_PIN"
	CodeSessionExpired         = "SESSION_EXPIRED"
	CodeForbidden              = "FORBIDDEN"
	CodeViewOnly               = "VIEW_ONLY"
	CodeNotParent              = "NOT_PARENT"
	CodeNotLinkedParent        = "NOT_LINKED_PARENT"
	CodeNotAccountOwner        = "NOT_ACCOUNT_OWNER"
	CodeNotApplicable          = "NOT_APPLICABLE"
	CodeApprovalAlreadyPending = "APPROVAL_ALREADY_PENDING"
	CodeNoPendingApproval      = "NO_PENDING_APPROVAL"
	CodeUsernameExists         = "USERNAME_EXISTS"
	CodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	CodePostNotFound           = "POST_NOT_FOUND"
	CodeStoreUnavailable       = "STORE_UNAVAILABLE"
	CodeInternalError          = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Validation messages are written for the end user
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return &httpError{http.StatusBadRequest, APIError{CodeValidationFailed, ve.Message}}
	}

	switch {
	// Credentials
	case errors.Is(err, model.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, model.ErrIncorrectPin):
		return &httpError{http.StatusForbidden, APIError{CodeIncorrectPin, "Incorrect PIN"}}
	case errors.Is(err, model.ErrUnauthenticated):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired login"}}
	case errors.Is(err, model.ErrSessionExpired):
		return &httpError{http.StatusUnauthorized, APIError{CodeSessionExpired, "Time is up for today. Please log in again later."}}

	// Policy denials
	case errors.Is(err, model.ErrViewOnly):
		return &httpError{http.StatusForbidden, APIError{CodeViewOnly, "Your account is in view-only mode"}}
	case errors.Is(err, model.ErrNotParent):
		return &httpError{http.StatusForbidden, APIError{CodeNotParent, "Only parents can change settings"}}
	case errors.Is(err, model.ErrNotLinkedParent):
		return &httpError{http.StatusForbidden, APIError{CodeNotLinkedParent, "You are not this child's parent"}}
	case errors.Is(err, model.ErrNotAccountOwner):
		return &httpError{http.StatusForbidden, APIError{CodeNotAccountOwner, "Only the account owner can do this"}}
	case errors.Is(err, model.ErrForbidden):
		return &httpError{http.StatusForbidden, APIError{CodeForbidden, "Not allowed"}}

	// State conflicts
	case errors.Is(err, model.ErrNotApplicable):
		return &httpError{http.StatusConflict, APIError{CodeNotApplicable, "Not applicable to this account"}}
	case errors.Is(err, model.ErrApprovalAlreadyPending):
		return &httpError{http.StatusConflict, APIError{CodeApprovalAlreadyPending, "A post is already waiting for approval"}}
	case errors.Is(err, model.ErrNoPendingApproval):
		return &httpError{http.StatusConflict, APIError{CodeNoPendingApproval, "No post is waiting for approval"}}
	case errors.Is(err, model.ErrDuplicateHandle):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already taken"}}

	// Records
	case errors.Is(err, model.ErrAccountNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeAccountNotFound, "Account not found"}}
	case errors.Is(err, model.ErrPostNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePostNotFound, "Post not found"}}

	case errors.Is(err, model.ErrStore):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeStoreUnavailable, "Service temporarily unavailable"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
