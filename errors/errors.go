package errors

import (
	"errors"
	"fmt"
)

// Handshake failures. The connection is rejected before it becomes active.
var (
	ErrNoCredential      = fmt.Errorf("no credential")
	ErrInvalidCredential = fmt.Errorf("invalid credential")
	ErrCredentialExpired = fmt.Errorf("credential expired")
	ErrUnknownUser       = fmt.Errorf("unknown user")
)

// Per-action failures. The connection survives and only the caller is told.
var (
	ErrNotFound       = fmt.Errorf("not found")
	ErrAccessDenied   = fmt.Errorf("access denied")
	ErrInvalidPayload = fmt.Errorf("invalid payload")
	ErrStorage        = fmt.Errorf("storage error")
	ErrTimeout        = fmt.Errorf("timeout")
)

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrSlowConsumer     = fmt.Errorf("outbound queue full")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrTxnRetries       = fmt.Errorf("transaction retries exhausted")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
)

// Is and As are re-exported so callers don't have to alias the standard package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// IsConnectionFatal reports whether err must close the connection.
func IsConnectionFatal(err error) bool {
	return Is(err, ErrNoCredential) ||
		Is(err, ErrInvalidCredential) ||
		Is(err, ErrCredentialExpired) ||
		Is(err, ErrUnknownUser)
}

// ClientMessage converts err into the text sent back in an error event.
// Server faults are reported generically so internal detail never leaks.
func ClientMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrNoCredential):
		return "authentication required"
	case Is(err, ErrInvalidCredential):
		return "invalid token"
	case Is(err, ErrCredentialExpired):
		return "token expired"
	case Is(err, ErrUnknownUser):
		return "user not found"
	case Is(err, ErrNotFound):
		return "conversation not found"
	case Is(err, ErrAccessDenied):
		return "access denied"
	case Is(err, ErrInvalidPayload):
		return err.Error()
	case Is(err, ErrTimeout):
		return "request timed out"
	default:
		return "internal server error"
	}
}
