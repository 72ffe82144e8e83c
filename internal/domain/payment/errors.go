package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad or missing input. No remote call is made and no state changes.
	ErrValidation = errors.New("validation")

	ErrInvalidMethod      = errors.New("payment: invalid payment method")
	ErrOrderNotFound      = errors.New("payment: order not found")
	ErrAmountBelowMinimum = errors.New("payment: order total below method minimum")
	ErrBankCodeRequired   = errors.New("payment: bank code is required")
	ErrUnsupportedBank    = errors.New("payment: unsupported bank code")
	ErrAlreadyPaid        = errors.New("payment: order already paid")
	ErrOrderNotPayable    = errors.New("payment: order does not accept payment")
	ErrUnknownSession     = errors.New("payment: no payment session for order")
	ErrTokenMismatch      = errors.New("payment: token does not match session")
	ErrTokenRequired      = errors.New("payment: token is required")

	ErrSessionNotFound        = errors.New("payment: session not found")
	ErrInvalidStateTransition = errors.New("payment: invalid session state transition")
	ErrTokenImmutable         = errors.New("payment: processor token already set")
	ErrInvalidSettings        = errors.New("payment: invalid merchant settings")

	// ErrRemote classifies failures talking to the processor.
	ErrRemote = errors.New("payment: remote communication failed")
	// ErrRejected classifies well-formed processor responses carrying a failure code.
	ErrRejected = errors.New("payment: rejected by processor")
)

// ValidationError wraps a detail sentinel so both errors.Is(err, ErrValidation)
// and errors.Is(err, <detail>) hold.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %v: %s", e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

func validationf(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// NewValidation builds a ValidationError for the detail sentinel.
func NewValidation(err error, detail string) error {
	return &ValidationError{Err: err, Detail: detail}
}

// RemoteErrorKind distinguishes transport failures for retry policy decisions.
type RemoteErrorKind string

const (
	RemoteNetwork    RemoteErrorKind = "network"
	RemoteTimeout    RemoteErrorKind = "timeout"
	RemoteHTTPStatus RemoteErrorKind = "http_status"
	RemoteMalformed  RemoteErrorKind = "malformed"
)

// RemoteError is a failure reaching the processor or reading its reply.
type RemoteError struct {
	Op         string
	Kind       RemoteErrorKind
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("payment: %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemote}
	}
	return []error{ErrRemote, e.Err}
}

// Timeout reports whether the call gave up waiting for the processor.
func (e *RemoteError) Timeout() bool { return e.Kind == RemoteTimeout }

// RejectionError is a well-formed processor response with a non-success code.
type RejectionError struct {
	Op          string
	Code        string
	Description string
}

func (e *RejectionError) Error() string {
	code := e.Code
	if code == "" {
		code = "<empty>"
	}
	if e.Description == "" {
		return fmt.Sprintf("payment: %s rejected with code %s", e.Op, code)
	}
	return fmt.Sprintf("payment: %s rejected with code %s: %s", e.Op, code, e.Description)
}

func (e *RejectionError) Unwrap() error { return ErrRejected }

// FailureDescription extracts the text recorded in audit notes for a failed
// verification. Rejections keep the processor's wording.
func FailureDescription(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		if rej.Description != "" {
			return rej.Description
		}
		if rej.Code != "" {
			return "error code " + rej.Code
		}
	}
	var rem *RemoteError
	if errors.As(err, &rem) {
		return fmt.Sprintf("processor unreachable (%s)", rem.Kind)
	}
	return ""
}
