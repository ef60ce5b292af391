package planner

import (
	"context"
	"errors"
	"strings"
)

// ErrorSeverity represents how a failed provider call should be handled.
type ErrorSeverity int

const (
	ErrorSeverityRetryable ErrorSeverity = iota // transient, try again after the retry delay
	ErrorSeverityFatal                          // retrying cannot help
)

func (s ErrorSeverity) String() string {
	if s == ErrorSeverityFatal {
		return "fatal"
	}
	return "retryable"
}

// ErrorClassifier decides whether an error is worth another attempt.
type ErrorClassifier interface {
	ClassifyError(err error) ErrorSeverity
}

// ProviderErrorClassifier classifies by the status code carried in a
// ProviderError and falls back to message inspection for transport errors.
type ProviderErrorClassifier struct{}

func NewProviderErrorClassifier() ErrorClassifier {
	return &ProviderErrorClassifier{}
}

var fatalCodes = map[string]bool{
	CodeInvalidArgument:    true,
	CodeUnauthenticated:    true,
	CodePermissionDenied:   true,
	CodeNotFound:           true,
	CodeFailedPrecondition: true,
}

func (c *ProviderErrorClassifier) ClassifyError(err error) ErrorSeverity {
	if err == nil {
		return ErrorSeverityRetryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorSeverityFatal
	}
	if pe, ok := AsProviderError(err); ok {
		if fatalCodes[pe.Code] {
			return ErrorSeverityFatal
		}
		return ErrorSeverityRetryable
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "forbidden") {
		return ErrorSeverityFatal
	}

	return ErrorSeverityRetryable
}

// IsRetryable is a convenience wrapper around the default classifier.
func IsRetryable(err error) bool {
	return NewProviderErrorClassifier().ClassifyError(err) == ErrorSeverityRetryable
}
