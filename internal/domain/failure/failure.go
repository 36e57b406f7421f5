// Package failure normalizes heterogeneous errors into a fixed taxonomy with
// a retry verdict.
//
// Errors raised inside this module are tagged at their origin with New or
// Wrap. Classify returns such a tag unchanged and only falls back to
// message matching for errors coming from opaque collaborators.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is the classification bucket of a failure.
type Kind string

// Kinds, listed in no particular order; see Classify for precedence.
const (
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindServer     Kind = "server"
	KindModel      Kind = "model"
	KindUnknown    Kind = "unknown"
)

// Retryable reports the default retry verdict for the kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindServer, KindModel:
		return true
	default:
		return false
	}
}

// Size and format limits surfaced in validation remediation messages.
const (
	DefaultMaxUploadBytes = 10 << 20
	supportedFormats      = "JPEG, PNG, GIF, BMP or TIFF"
)

// Default user-facing messages per kind.
const (
	msgValidation = "The request is invalid. Please check your input and try again."
	msgNetwork    = "Network connection is unstable. Please check your connection and try again."
	msgAuth       = "Your session has expired or you are not authorized. Please sign in again."
	msgServer     = "The server is temporarily unavailable. Please try again shortly."
	msgModel      = "Skin analysis failed. Please try again with a clear, well-lit photo."
	msgUnknown    = "An unexpected error occurred. Please try again."
)

// ClassifiedError is a failure normalized into the taxonomy. Never mutated
// after construction.
type ClassifiedError struct {
	Kind      Kind
	Message   string
	Retryable bool
	Cause     error
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ClassifiedError) Unwrap() error { return e.Cause }

// New tags a failure at its origin with an explicit kind and user-facing message.
func New(kind Kind, message string) *ClassifiedError {
	return &ClassifiedError{
		Kind:      kind,
		Message:   message,
		Retryable: kind.Retryable(),
		Cause:     errors.New(message),
	}
}

// Wrap tags err with kind, keeping err as the cause. The message is the
// default for the kind unless err already carries a user-facing one.
func Wrap(kind Kind, err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	return &ClassifiedError{
		Kind:      kind,
		Message:   messageFor(kind, strings.ToLower(err.Error())),
		Retryable: kind.Retryable(),
		Cause:     err,
	}
}

// Validationf builds a validation error with a formatted remediation message.
func Validationf(format string, args ...any) *ClassifiedError {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// Classify maps any failure into a ClassifiedError. It never fails; a nil
// input yields an Unknown error so callers always have something to surface.
func Classify(err error) *ClassifiedError {
	if err == nil {
		err = errors.New("unknown error")
	}

	var tagged *ClassifiedError
	if errors.As(err, &tagged) {
		return tagged
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Kind: KindNetwork, Message: msgNetwork, Retryable: true, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ClassifiedError{Kind: KindNetwork, Message: msgNetwork, Retryable: true, Cause: err}
	}

	msg := strings.ToLower(err.Error())
	kind := matchKind(msg)
	return &ClassifiedError{
		Kind:      kind,
		Message:   messageFor(kind, msg),
		Retryable: kind.Retryable(),
		Cause:     err,
	}
}

// IsRetryable is a shorthand for Classify(err).Retryable.
func IsRetryable(err error) bool {
	return Classify(err).Retryable
}

// KindOf is a shorthand for Classify(err).Kind.
func KindOf(err error) Kind {
	return Classify(err).Kind
}
