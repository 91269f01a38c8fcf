package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors classifying adapter failures. Adapters wrap one of
// these into every error they return so the engine can decide whether
// a failure is fatal for the provider, will heal next cycle, or needs
// a configuration change.
var (
	// ErrUnauthorized indicates the remote API rejected our credentials.
	// Fatal for the provider for the rest of the cycle.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable indicates a network or server-side (5xx) condition.
	// Expected to heal by the next scheduled cycle.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrZoneNotFound indicates the zone itself does not exist.
	// Will not heal without a configuration change.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrBadRecord indicates the provider rejected the record as
	// malformed. Will not heal without a configuration change.
	ErrBadRecord = errors.New("malformed record")
)

// Class is the coarse failure classification derived from an error.
type Class string

const (
	ClassAuth      Class = "auth"
	ClassTransient Class = "transient"
	ClassPermanent Class = "permanent"
)

// Classify maps an adapter error onto its failure class. Unknown
// errors (including plain network errors and context timeouts) count
// as transient: the next cycle retries them for free.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return ClassAuth
	case errors.Is(err, ErrZoneNotFound), errors.Is(err, ErrBadRecord):
		return ClassPermanent
	case errors.Is(err, ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassTransient
}

// FromHTTPStatus converts a non-2xx HTTP status into the matching
// sentinel. Returns nil for 2xx codes.
func FromHTTPStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrZoneNotFound
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return ErrBadRecord
	case code == http.StatusTooManyRequests || code >= 500:
		return ErrUnavailable
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, code)
	}
}

// Error wraps an adapter failure with provider and operation context.
type Error struct {
	Provider  string
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError attaches provider/operation context to err. Returns nil
// for a nil err.
func WrapError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: provider, Operation: operation, Err: err}
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsZoneNotFound reports whether err means the zone does not exist.
func IsZoneNotFound(err error) bool {
	return errors.Is(err, ErrZoneNotFound)
}
