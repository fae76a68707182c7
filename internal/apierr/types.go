package apierr

import "fmt"

// Kind is the closed error taxonomy every caller consumes. No caller should
// branch on raw HTTP status codes; it branches on Kind.
type Kind string

const (
	KindNetwork        Kind = "network"
	KindTimeout        Kind = "timeout"
	KindSessionExpired Kind = "session_expired"
	KindAccountLocked  Kind = "account_locked"
	KindForbidden      Kind = "forbidden"
	KindValidation     Kind = "validation"
	KindServer         Kind = "server_error"
)

// Backend codes that indicate a permanently invalid session.
const (
	CodeAccountLocked  = "ACCOUNT_LOCKED"
	CodeSessionRevoked = "SESSION_REVOKED"
)

// Error is the uniform error record produced by the classifier.
type Error struct {
	Kind        Kind
	Message     string
	HTTPStatus  int
	BackendCode string
	Details     map[string]any
}

func (e *Error) Error() string {
	if e.BackendCode != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.BackendCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New constructs an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// IsKind reports whether err is a classifier error of the given kind.
func IsKind(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}

// IsLockoutCode reports whether a backend code means the session is
// permanently invalid and local credentials must be destroyed.
func IsLockoutCode(code string) bool {
	return code == CodeAccountLocked || code == CodeSessionRevoked
}

// Retryable reports whether retrying the same request may help.
// Authorization failures are never retryable from the caller's side.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindServer:
		return e.HTTPStatus >= 500
	}
	return false
}
