// Package partner implements the signed HTTP client and token lifecycle for
// the partner commerce API.
package partner

import "errors"

// Kind classifies a failed partner interaction.
type Kind int

// Error kinds, in the order a call can fail: no cached token, rejected
// credential exchange, in-band business rejection, network-level failure.
const (
	KindUnknown Kind = iota
	KindNotAuthenticated
	KindAuthFailure
	KindPartner
	KindTransport
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindAuthFailure:
		return "auth_failure"
	case KindPartner:
		return "partner_error"
	case KindTransport:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Error is the tagged failure returned by every network-calling function in
// this package. Callers branch on Kind; Message is safe to surface to the
// inbound caller, the wrapped cause is not.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying transport error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrNotLoggedIn is returned when a signed call is attempted without a
// cached token for the tenant.
var ErrNotLoggedIn = &Error{Kind: KindNotAuthenticated, Message: "not logged in"}

// KindOf extracts the Kind from err, or KindUnknown when err is not a
// partner error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func authFailure(message string) *Error {
	return &Error{Kind: KindAuthFailure, Message: message}
}

func partnerError(message string) *Error {
	return &Error{Kind: KindPartner, Message: message}
}

func transportError(message string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, cause: cause}
}
