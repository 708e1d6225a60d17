package offer

import "fmt"

type ErrorCode string

const (
	ErrorBadRequest  ErrorCode = "BAD_REQUEST"
	ErrorBackendCall ErrorCode = "BACKEND_CALL_FAILED"
	ErrorRunFailed   ErrorCode = "RUN_FAILED"
	ErrorTimeout     ErrorCode = "TIMEOUT"
	ErrorCancelled   ErrorCode = "CANCELLED"
	ErrorInternal    ErrorCode = "INTERNAL_ERROR"
)

// Error is the failure half of an exchange outcome. Reason is safe to show
// the caller, Details carries whatever the backend said.
type Error struct {
	Code    ErrorCode
	Reason  string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("offer: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("offer: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason, details string, err error) *Error {
	return &Error{Code: code, Reason: reason, Details: details, Err: err}
}
