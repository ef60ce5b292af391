package planner

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SuccessAfterTransientFailure(t *testing.T) {
	retry := NewRetry(3, 5*time.Millisecond)

	attempts := 0
	err := retry.Execute(context.Background(), func(attempt int) error {
		attempts++
		if attempt != attempts {
			t.Errorf("attempt number %d, expected %d", attempt, attempts)
		}
		if attempts < 2 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_BudgetExhausted(t *testing.T) {
	retry := NewRetry(3, 5*time.Millisecond)

	attempts := 0
	last := &ProviderError{Code: CodeUnavailable, Message: "third"}
	err := retry.Execute(context.Background(), func(attempt int) error {
		attempts++
		if attempt == 3 {
			return last
		}
		return &ProviderError{Code: CodeUnavailable, Message: "early"}
	})

	if err != last {
		t.Errorf("Expected the last error to be returned, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_FixedDelay(t *testing.T) {
	retry := NewRetry(3, 30*time.Millisecond)

	var times []time.Time
	_ = retry.Execute(context.Background(), func(int) error {
		times = append(times, time.Now())
		return errors.New("boom")
	})

	if len(times) != 3 {
		t.Fatalf("Expected 3 attempts, got %d", len(times))
	}
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap < 25*time.Millisecond || gap > 200*time.Millisecond {
			t.Errorf("gap %d = %v, expected a fixed ~30ms delay", i, gap)
		}
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	tests := []string{CodeUnauthenticated, CodePermissionDenied, CodeInvalidArgument}

	for _, code := range tests {
		t.Run(code, func(t *testing.T) {
			retry := NewRetry(3, 5*time.Millisecond)
			attempts := 0
			err := retry.Execute(context.Background(), func(int) error {
				attempts++
				return &ProviderError{Code: code}
			})
			if err == nil {
				t.Error("Expected error, got nil")
			}
			if attempts != 1 {
				t.Errorf("Expected 1 attempt, got %d", attempts)
			}
		})
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	retry := NewRetry(3, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := retry.Execute(ctx, func(int) error {
		return errors.New("some error")
	})
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRetry_MinimumOneAttempt(t *testing.T) {
	retry := NewRetry(0, time.Millisecond)
	if retry.MaxAttempts() != 1 {
		t.Errorf("Expected max attempts 1, got %d", retry.MaxAttempts())
	}
}
