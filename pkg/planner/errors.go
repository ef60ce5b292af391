package planner

import (
	"errors"
	"fmt"
	"strings"
)

// Status codes used in ProviderError.Code. They follow the google.rpc codes
// the Ads API reports in its error envelope.
const (
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeNotFound           = "NOT_FOUND"
	CodeFailedPrecondition = "FAILED_PRECONDITION"
	CodeResourceExhausted  = "RESOURCE_EXHAUSTED"
	CodeUnavailable        = "UNAVAILABLE"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
	CodeInternal           = "INTERNAL"
	CodeUnknown            = "UNKNOWN"
)

// ErrorDetail is one entry of the provider's failure list.
type ErrorDetail struct {
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	FieldPath string `json:"field_path,omitempty"`
}

// ProviderError reports a rejected or failed provider call.
type ProviderError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	FieldPath  string        `json:"field_path,omitempty"`
	HTTPStatus int           `json:"http_status,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
	Details    []ErrorDetail `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString("provider error ")
	b.WriteString(e.Code)
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, " (http %d)", e.HTTPStatus)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.FieldPath != "" {
		b.WriteString(" [field ")
		b.WriteString(e.FieldPath)
		b.WriteString("]")
	}
	return b.String()
}

// AsProviderError unwraps err into a *ProviderError if it carries one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func newProviderError(code, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// codeForHTTPStatus is used when the body carries no status string.
func codeForHTTPStatus(status int) string {
	switch {
	case status == 400:
		return CodeInvalidArgument
	case status == 401:
		return CodeUnauthenticated
	case status == 403:
		return CodePermissionDenied
	case status == 404:
		return CodeNotFound
	case status == 429:
		return CodeResourceExhausted
	case status == 503:
		return CodeUnavailable
	case status == 504:
		return CodeDeadlineExceeded
	case status >= 500:
		return CodeInternal
	default:
		return CodeUnknown
	}
}
