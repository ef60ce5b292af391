package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestProviderErrorClassifier(t *testing.T) {
	classifier := NewProviderErrorClassifier()

	tests := []struct {
		name string
		err  error
		want ErrorSeverity
	}{
		{"invalid argument", &ProviderError{Code: CodeInvalidArgument}, ErrorSeverityFatal},
		{"unauthenticated", &ProviderError{Code: CodeUnauthenticated}, ErrorSeverityFatal},
		{"permission denied", &ProviderError{Code: CodePermissionDenied}, ErrorSeverityFatal},
		{"not found", &ProviderError{Code: CodeNotFound}, ErrorSeverityFatal},
		{"failed precondition", &ProviderError{Code: CodeFailedPrecondition}, ErrorSeverityFatal},
		{"wrapped failed precondition", fmt.Errorf("chunk 2: %w", &ProviderError{Code: CodeFailedPrecondition}), ErrorSeverityFatal},
		{"resource exhausted", &ProviderError{Code: CodeResourceExhausted}, ErrorSeverityRetryable},
		{"unavailable", &ProviderError{Code: CodeUnavailable}, ErrorSeverityRetryable},
		{"internal", &ProviderError{Code: CodeInternal}, ErrorSeverityRetryable},
		{"cancelled", context.Canceled, ErrorSeverityFatal},
		{"invalid grant", errors.New("oauth2: invalid_grant"), ErrorSeverityFatal},
		{"connection reset", errors.New("read: connection reset by peer"), ErrorSeverityRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}

	if IsRetryable(&ProviderError{Code: CodeFailedPrecondition}) {
		t.Error("FAILED_PRECONDITION should not be retried")
	}
}
