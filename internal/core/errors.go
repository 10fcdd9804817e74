package core

import (
	"errors"

	"github.com/medilink/telemed/internal/domain"
)

var (
	// ErrAuthentication means the handshake credential was bad; the
	// connection is refused, not admitted.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAccessDenied rejects one operation; the connection stays alive.
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("not found")
	// ErrDuplicateConnection should not occur under correct transport
	// semantics; it is kept as a defensive check.
	ErrDuplicateConnection = errors.New("duplicate connection id")
	ErrBackpressure        = errors.New("send buffer full")
	ErrConnectionClosed    = errors.New("connection closed")
)

// Code maps an error to the machine-checkable code carried in wire-level
// error replies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "authentication_error"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateConnection):
		return "duplicate_connection"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, domain.ErrMessageLimitExceeded):
		return "message_limit_exceeded"
	case errors.Is(err, domain.ErrEmptyEscalationReason),
		errors.Is(err, domain.ErrFeedbackOnActive):
		return "invalid_request"
	default:
		return "internal_error"
	}
}
