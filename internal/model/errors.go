package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Record errors
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateHandle = errors.New("handle already taken")
	ErrPostNotFound    = errors.New("post not found")
	ErrPolicyNotFound  = errors.New("policy not found")

	// Validation
	ErrValidation = errors.New("validation failed")

	// Authentication
	ErrAuth               = errors.New("authentication failed")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuth)
	ErrIncorrectPin       = fmt.Errorf("%w: incorrect PIN", ErrAuth)
	ErrUnauthenticated    = fmt.Errorf("%w: not logged in", ErrAuth)

	// Policy violations
	ErrForbidden       = errors.New("forbidden")
	ErrViewOnly        = fmt.Errorf("%w: view-only", ErrForbidden)
	ErrNotParent       = fmt.Errorf("%w: only parents can change settings", ErrForbidden)
	ErrNotLinkedParent = fmt.Errorf("%w: not this child's parent", ErrForbidden)
	ErrNotAccountOwner = fmt.Errorf("%w: only the account owner can do this", ErrForbidden)

	// Session errors
	ErrSessionExpired = errors.New("session expired")
	ErrNotApplicable  = errors.New("not applicable to this account")
	ErrSessionActive  = errors.New("session already active")

	// Approval errors
	ErrApprovalRequired       = errors.New("approval required")
	ErrApprovalAlreadyPending = errors.New("a post is already awaiting approval")
	ErrNoPendingApproval      = errors.New("no post is awaiting approval")

	// Store failures
	ErrStore = errors.New("store unavailable")
)

// ValidationError reports a bad or missing input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps an opaque failure from the record store
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// WrapStoreError wraps err as a StoreError unless it is nil or a known record error
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrDuplicateHandle),
		errors.Is(err, ErrPostNotFound),
		errors.Is(err, ErrPolicyNotFound),
		errors.Is(err, ErrStore):
		return err
	}
	return &StoreError{Op: op, Err: err}
}
