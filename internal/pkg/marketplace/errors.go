package marketplace

import (
	"errors"
	"fmt"
)

// Kind classifies a command rejection. Validation and capability checks
// are resolved locally; every other kind is detected from the server
// response.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindUnverified       Kind = "unverified"
	KindDuplicateBid     Kind = "duplicate_bid"
	KindNotPending       Kind = "not_pending"
	KindAlreadyActive    Kind = "already_active"
	KindAlreadyCancelled Kind = "already_cancelled"
	KindConflict         Kind = "conflict"
	KindTransient        Kind = "transient"
	KindUnknown          Kind = "unknown"
)

// Error is a typed command rejection.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed rejection.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the rejection kind from err, or KindUnknown for
// untyped errors. A nil err has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given rejection kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// errorBody is the JSON error envelope the marketplace returns.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps an HTTP status plus the decoded error body to the
// rejection taxonomy. 409 responses are refined by the server's code
// field; everything retryable becomes transient.
func classify(status int, body errorBody) *Error {
	msg := body.Message
	if msg == "" {
		msg = fmt.Sprintf("marketplace returned status %d", status)
	}

	switch {
	case status == 400 || status == 422:
		return &Error{Kind: KindValidation, Message: msg}
	case status == 401 || status == 403:
		return &Error{Kind: KindUnverified, Message: msg}
	case status == 404:
		// The resource raced away between client check and submit.
		return &Error{Kind: KindConflict, Message: msg}
	case status == 409:
		switch body.Code {
		case "duplicate_bid":
			return &Error{Kind: KindDuplicateBid, Message: msg}
		case "not_pending":
			return &Error{Kind: KindNotPending, Message: msg}
		case "already_active":
			return &Error{Kind: KindAlreadyActive, Message: msg}
		case "already_cancelled":
			return &Error{Kind: KindAlreadyCancelled, Message: msg}
		default:
			return &Error{Kind: KindConflict, Message: msg}
		}
	case status == 408 || status == 429 || status >= 500:
		return &Error{Kind: KindTransient, Message: msg}
	default:
		return &Error{Kind: KindUnknown, Message: msg}
	}
}
