package model

import "errors"

var (
	// ErrInvalidParent is returned when the parent does not exist or is the child itself
	ErrInvalidParent = errors.New("invalid parent")
	// ErrDuplicateChild is returned when the child already has an inbound edge
	ErrDuplicateChild = errors.New("duplicate child")
	// ErrNotFound godoc
	ErrNotFound = errors.New("member not found")
	// ErrUnauthorized is returned on cross-user access without privilege
	ErrUnauthorized = errors.New("access to this network is not allowed")
	// ErrActivationRequired is returned when the caller's own account is not activated
	ErrActivationRequired = errors.New("account activation required")
	// ErrTooManyNodes is returned when a tree request would exceed the node budget
	ErrTooManyNodes = errors.New("too many nodes requested")
	// ErrServiceUnavailable is returned after exhausting the write conflict retries
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrStale is returned for a fetch superseded by a newer navigation
	ErrStale = errors.New("stale response")
	// ErrWriteConflict marks a retryable conflict on the ancestor counters
	ErrWriteConflict = errors.New("write conflict")
	// ErrInvalidParams godoc
	ErrInvalidParams = errors.New("invalid parameters")
)

// Error codes sent to clients next to the message so they can react on them
const (
	ErrorCodeInvalidParams      = "invalid_params"
	ErrorCodeInvalidParent      = "invalid_parent"
	ErrorCodeDuplicateChild     = "duplicate_child"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeUnauthenticated    = "unauthenticated"
	ErrorCodeUnauthorized       = "unauthorized"
	ErrorCodeActivationRequired = "activation_required"
	ErrorCodeTooManyNodes       = "too_many_nodes"
	ErrorCodeServiceUnavailable = "service_unavailable"
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeInternal           = "internal"
)

var errorsByCode = map[string]error{
	ErrorCodeInvalidParams:      ErrInvalidParams,
	ErrorCodeInvalidParent:      ErrInvalidParent,
	ErrorCodeDuplicateChild:     ErrDuplicateChild,
	ErrorCodeNotFound:           ErrNotFound,
	ErrorCodeUnauthorized:       ErrUnauthorized,
	ErrorCodeActivationRequired: ErrActivationRequired,
	ErrorCodeTooManyNodes:       ErrTooManyNodes,
	ErrorCodeServiceUnavailable: ErrServiceUnavailable,
}

// ErrorFromCode maps an error code received from the API back to its sentinel error
func ErrorFromCode(code string) (error, bool) {
	err, ok := errorsByCode[code]
	return err, ok
}
