package planner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingRecorder) ObserveProviderCall(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func testGateConfig() GateConfig {
	return GateConfig{RateInterval: 10 * time.Millisecond, MaxAttempts: 3, RetryDelay: 5 * time.Millisecond}
}

func TestGate_TransientTwiceThenSuccess(t *testing.T) {
	calls := 0
	stub := FetcherFunc(func(_ context.Context, keywords []string, _, _ string) ([]KeywordMetrics, error) {
		calls++
		if calls <= 2 {
			return nil, &ProviderError{Code: CodeUnavailable, Message: "backend unavailable"}
		}
		return []KeywordMetrics{{Keyword: keywords[0], AvgMonthlySearches: 10}}, nil
	})

	rec := &recordingRecorder{}
	gate := NewGate(stub, testGateConfig()).WithRecorder(rec)

	records, err := gate.Fetch(context.Background(), []string{"shoes"}, "2840", "1000")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "shoes", records[0].Keyword)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{OutcomeRetryable, OutcomeRetryable, OutcomeSuccess}, rec.outcomes)
}

func TestGate_ExhaustedReturnsLastError(t *testing.T) {
	calls := 0
	stub := FetcherFunc(func(context.Context, []string, string, string) ([]KeywordMetrics, error) {
		calls++
		return nil, &ProviderError{Code: CodeResourceExhausted, Message: "quota"}
	})

	_, err := NewGate(stub, testGateConfig()).Fetch(context.Background(), []string{"a"}, "2840", "1000")
	require.Error(t, err)

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, CodeResourceExhausted, pe.Code)
	assert.Equal(t, 3, calls)
}

func TestGate_FatalErrorNotRetried(t *testing.T) {
	calls := 0
	stub := FetcherFunc(func(context.Context, []string, string, string) ([]KeywordMetrics, error) {
		calls++
		return nil, &ProviderError{Code: CodeUnauthenticated}
	})

	rec := &recordingRecorder{}
	_, err := NewGate(stub, testGateConfig()).WithRecorder(rec).Fetch(context.Background(), []string{"a"}, "2840", "1000")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{OutcomeFatal}, rec.outcomes)
}

func TestGate_SpacesConsecutiveCalls(t *testing.T) {
	var starts []time.Time
	stub := FetcherFunc(func(context.Context, []string, string, string) ([]KeywordMetrics, error) {
		starts = append(starts, time.Now())
		return nil, nil
	})

	gate := NewGate(stub, GateConfig{RateInterval: 50 * time.Millisecond, MaxAttempts: 1})
	for i := 0; i < 3; i++ {
		_, err := gate.Fetch(context.Background(), []string{"a"}, "2840", "1000")
		require.NoError(t, err)
	}

	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), 45*time.Millisecond)
	}
}
