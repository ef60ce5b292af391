package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

type memorySink struct {
	mu    sync.Mutex
	lines []string
}

func (s *memorySink) Append(keywords ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, keywords...)
	return nil
}

func (s *memorySink) count(keyword string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		if l == keyword {
			n++
		}
	}
	return n
}

func metrics(keywords ...string) []planner.KeywordMetrics {
	out := make([]planner.KeywordMetrics, len(keywords))
	for i, k := range keywords {
		out[i] = planner.KeywordMetrics{Keyword: k, AvgMonthlySearches: 10}
	}
	return out
}

func keywordList(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("kw-%02d", i)
	}
	return out
}

func testConfig(chunkSize, maxRounds int) Config {
	return Config{ChunkSize: chunkSize, MaxRounds: maxRounds, Cooldown: time.Millisecond}
}

var target = Target{Country: "United States", GeoTargetID: "2840", LanguageID: "1000"}

func TestSplit(t *testing.T) {
	tests := []struct {
		length, size, wantChunks int
	}{
		{0, 3, 0},
		{1, 3, 1},
		{3, 3, 1},
		{4, 3, 2},
		{10, 3, 4},
		{9999, 9999, 1},
		{10000, 9999, 2},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("L=%d,C=%d", tt.length, tt.size), func(t *testing.T) {
			input := keywordList(tt.length)
			chunks, err := Split(input, tt.size)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(chunks) != tt.wantChunks {
				t.Errorf("got %d chunks, want %d", len(chunks), tt.wantChunks)
			}

			var joined []string
			for _, c := range chunks {
				if len(c) > tt.size {
					t.Errorf("chunk of %d exceeds size %d", len(c), tt.size)
				}
				joined = append(joined, c...)
			}
			if strings.Join(joined, ",") != strings.Join(input, ",") {
				t.Error("concatenated chunks differ from input")
			}
		})
	}
}

func TestSplit_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Split([]string{"a"}, size)
		if !errors.Is(err, ErrInvalidChunkSize) {
			t.Errorf("size %d: expected ErrInvalidChunkSize, got %v", size, err)
		}
	}
}

func TestProcessChunk_MissingAndInventedKeywords(t *testing.T) {
	stub := planner.FetcherFunc(func(context.Context, []string, string, string) ([]planner.KeywordMetrics, error) {
		return metrics("a", "zzz-not-submitted"), nil
	})
	sink := &memorySink{}

	outcome := NewOrchestrator(stub, testConfig(10, 0), sink).ProcessChunk(context.Background(), []string{"a", "b", "c"}, target)

	require.NoError(t, outcome.Err)
	require.Len(t, outcome.Records, 1)
	assert.Equal(t, "a", outcome.Records[0].Keyword)
	assert.Equal(t, []string{"b", "c"}, outcome.Missing)
	assert.Equal(t, []string{"b", "c"}, sink.lines)
}

func TestProcessChunk_FailureMarksWholeChunkMissing(t *testing.T) {
	stub := planner.FetcherFunc(func(context.Context, []string, string, string) ([]planner.KeywordMetrics, error) {
		return nil, &planner.ProviderError{Code: planner.CodeInvalidArgument}
	})

	outcome := NewOrchestrator(stub, testConfig(10, 0), nil).ProcessChunk(context.Background(), []string{"a", "b"}, target)

	require.Error(t, outcome.Err)
	assert.Empty(t, outcome.Records)
	assert.Equal(t, []string{"a", "b"}, outcome.Missing)
}

func TestOrchestrator_PacingBetweenChunksOnly(t *testing.T) {
	var calls []time.Time
	stub := planner.FetcherFunc(func(_ context.Context, kws []string, _, _ string) ([]planner.KeywordMetrics, error) {
		calls = append(calls, time.Now())
		return metrics(kws...), nil
	})

	cfg := testConfig(2, 0)
	cfg.PacingDelay = 30 * time.Millisecond

	start := time.Now()
	pass, err := NewOrchestrator(stub, cfg, nil).Process(context.Background(), keywordList(5), target)
	require.NoError(t, err)
	elapsed := time.Since(start)

	require.Len(t, calls, 3)
	assert.Len(t, pass.Records, 5)
	assert.Empty(t, pass.Missing)
	assert.Less(t, calls[0].Sub(start), 20*time.Millisecond, "first chunk is not delayed")
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 90*time.Millisecond+50*time.Millisecond, "no delay after the last chunk")
}

func TestRunner_EmptyInputMakesNoCalls(t *testing.T) {
	calls := 0
	stub := planner.FetcherFunc(func(context.Context, []string, string, string) ([]planner.KeywordMetrics, error) {
		calls++
		return nil, nil
	})

	report, err := NewRunner(stub, testConfig(10, 2), nil).Run(context.Background(), Request{Target: target})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, report.Requested)
	assert.Equal(t, 0, report.Table.Len())
	assert.Empty(t, report.StillMissing)
	assert.NotEmpty(t, report.RunID)
}

func TestRunner_CountConservation(t *testing.T) {
	for _, n := range []int{1, 7, 25} {
		t.Run(fmt.Sprintf("%d keywords", n), func(t *testing.T) {
			stub := planner.FetcherFunc(func(_ context.Context, kws []string, _, _ string) ([]planner.KeywordMetrics, error) {
				var out []string
				for _, k := range kws {
					if k[len(k)-1]%3 != 0 {
						out = append(out, k)
					}
				}
				// duplicate records for the same keyword must not inflate counts
				out = append(out, out...)
				return metrics(out...), nil
			})

			input := keywordList(n)
			report, err := NewRunner(stub, testConfig(4, 2), nil).Run(context.Background(), Request{Keywords: input, Target: target})
			require.NoError(t, err)

			assert.Equal(t, n, report.Requested)
			assert.Equal(t, n, report.Resolved()+len(report.StillMissing))
			for _, k := range report.StillMissing {
				assert.False(t, report.Table.Has(k), "%s both resolved and missing", k)
			}
		})
	}
}

func TestReconciler_MissingSetNonIncreasing(t *testing.T) {
	// keyword i resolves on its (i%4)+1-th submission
	var mu sync.Mutex
	seen := make(map[string]int)
	stub := planner.FetcherFunc(func(_ context.Context, kws []string, _, _ string) ([]planner.KeywordMetrics, error) {
		mu.Lock()
		defer mu.Unlock()
		var out []string
		for _, k := range kws {
			seen[k]++
			var idx int
			fmt.Sscanf(k, "kw-%d", &idx)
			if seen[k] >= idx%4+1 {
				out = append(out, k)
			}
		}
		return metrics(out...), nil
	})

	report, err := NewRunner(stub, testConfig(3, 3), nil).Run(context.Background(), Request{Keywords: keywordList(20), Target: target})
	require.NoError(t, err)

	require.Len(t, report.Rounds, 3)
	previous := 15 // 5 of 20 resolve in the initial pass
	for _, r := range report.Rounds {
		assert.Equal(t, previous, r.Attempted)
		assert.LessOrEqual(t, r.Remaining, r.Attempted)
		previous = r.Remaining
	}
	assert.Equal(t, 0, previous)
	assert.Empty(t, report.StillMissing)
	assert.Equal(t, 20, report.Resolved())
}

func TestRunner_ThreeKeywordScenario(t *testing.T) {
	call := 0
	stub := planner.FetcherFunc(func(_ context.Context, kws []string, _, _ string) ([]planner.KeywordMetrics, error) {
		call++
		if call == 2 {
			return metrics("alpha", "beta"), nil
		}
		return nil, nil
	})

	var events []Event
	sink := &memorySink{}
	report, err := NewRunner(stub, testConfig(10, 2), sink).
		WithProgress(func(e Event) { events = append(events, e) }).
		Run(context.Background(), Request{Keywords: []string{"alpha", "beta", "gamma"}, Target: target})
	require.NoError(t, err)

	assert.Equal(t, []string{"gamma"}, report.StillMissing)
	assert.Equal(t, 2, report.Resolved())
	assert.Equal(t, 1, sink.count("gamma"), "unresolved keyword logged exactly once")
	assert.Equal(t, 1, sink.count("alpha"))
	assert.Equal(t, 1, sink.count("beta"))
	assert.Len(t, sink.lines, 3)

	require.Len(t, report.Rounds, 2)
	assert.Equal(t, RoundSummary{Round: 1, Attempted: 3, Resolved: 2, Remaining: 1}, report.Rounds[0])

	cooldowns := 0
	for _, e := range events {
		if e.Stage == StageCooldown {
			cooldowns++
		}
	}
	assert.Equal(t, 1, cooldowns, "cooldown only between rounds with keywords left")
	assert.Equal(t, StageRunComplete, events[len(events)-1].Stage)
}

func TestRunner_NoCooldownWhenResolved(t *testing.T) {
	call := 0
	stub := planner.FetcherFunc(func(_ context.Context, kws []string, _, _ string) ([]planner.KeywordMetrics, error) {
		call++
		if call == 1 {
			return nil, nil
		}
		return metrics(kws...), nil
	})

	var stages []Stage
	cfg := testConfig(10, 2)
	cfg.Cooldown = time.Hour
	report, err := NewRunner(stub, cfg, nil).
		WithProgress(func(e Event) { stages = append(stages, e.Stage) }).
		Run(context.Background(), Request{Keywords: []string{"a", "b"}, Target: target})
	require.NoError(t, err)

	assert.Empty(t, report.StillMissing)
	assert.Len(t, report.Rounds, 1)
	assert.NotContains(t, stages, StageCooldown)
}

func TestRunner_TransientFailuresWithinRetryCeiling(t *testing.T) {
	calls := 0
	stub := planner.FetcherFunc(func(_ context.Context, kws []string, _, _ string) ([]planner.KeywordMetrics, error) {
		calls++
		if calls <= 2 {
			return nil, &planner.ProviderError{Code: planner.CodeUnavailable, Message: "try again"}
		}
		return metrics(kws...), nil
	})
	gate := planner.NewGate(stub, planner.GateConfig{RateInterval: time.Millisecond, MaxAttempts: 3, RetryDelay: time.Millisecond})

	report, err := NewRunner(gate, testConfig(10, 2), nil).Run(context.Background(), Request{Keywords: []string{"a", "b"}, Target: target})
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 2, report.Resolved())
}

func TestRunner_ChunkFailureDoesNotAbortRun(t *testing.T) {
	stub := planner.FetcherFunc(func(_ context.Context, kws []string, _, _ string) ([]planner.KeywordMetrics, error) {
		for _, k := range kws {
			if k == "bad" {
				return nil, &planner.ProviderError{Code: planner.CodeInvalidArgument, Message: "rejected", FieldPath: "keywords.text"}
			}
		}
		return metrics(kws...), nil
	})

	report, err := NewRunner(stub, testConfig(2, 1), nil).Run(context.Background(), Request{
		Keywords: []string{"a", "b", "bad", "c", "d", "e"},
		Target:   target,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Resolved())
	assert.Equal(t, []string{"bad", "c"}, report.StillMissing)
	require.Len(t, report.Failures, 2, "initial pass and one retry round")
	assert.Equal(t, 0, report.Failures[0].Round)
	assert.Equal(t, 2, report.Failures[0].Chunk)

	pe, ok := planner.AsProviderError(report.Failures[0].Err)
	require.True(t, ok)
	assert.Equal(t, "keywords.text", pe.FieldPath)
}

func TestRunner_ContextCancelledReturnsPartialReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := planner.FetcherFunc(func(_ context.Context, kws []string, _, _ string) ([]planner.KeywordMetrics, error) {
		cancel()
		return metrics(kws...), nil
	})

	cfg := testConfig(1, 2)
	cfg.PacingDelay = time.Second
	report, err := NewRunner(stub, cfg, nil).Run(ctx, Request{Keywords: []string{"a", "b", "c"}, Target: target})

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Resolved())
	assert.Equal(t, []string{"b", "c"}, report.StillMissing)
}

func TestRunner_CancelledRunLogsOnlySubmittedKeywords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := planner.FetcherFunc(func(ctx context.Context, _ []string, _, _ string) ([]planner.KeywordMetrics, error) {
		cancel()
		return nil, ctx.Err()
	})

	sink := &memorySink{}
	report, err := NewRunner(stub, testConfig(1, 2), sink).Run(ctx, Request{Keywords: []string{"a", "b", "c"}, Target: target})

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, []string{"a", "b", "c"}, report.StillMissing)
	assert.Equal(t, 1, sink.count("a"))
	assert.Zero(t, sink.count("b"), "b was never submitted")
	assert.Zero(t, sink.count("c"), "c was never submitted")
}

func TestRunner_RequiresTarget(t *testing.T) {
	_, err := NewRunner(planner.FetcherFunc(nil), testConfig(1, 0), nil).Run(context.Background(), Request{Keywords: []string{"a"}})
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestRunnerBuilder(t *testing.T) {
	_, err := NewRunnerBuilder().
		WithChunkSize(0).
		WithPacingDelay(-time.Second).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk size must be positive")
	assert.Contains(t, err.Error(), "pacing delay cannot be negative")
	assert.Contains(t, err.Error(), "fetcher is required")

	_, err = NewRunnerBuilder().
		WithFetcher(planner.FetcherFunc(nil)).
		WithMaxKeywordsPerCall(100).
		WithChunkSize(101).
		Build()
	assert.ErrorContains(t, err, "exceeds provider limit")

	runner, err := NewRunnerBuilder().
		WithFetcher(planner.FetcherFunc(nil)).
		WithConfig(testConfig(50, 2)).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 50, runner.config.ChunkSize)
}

func TestOnceSink(t *testing.T) {
	mem := &memorySink{}
	sink := newOnceSink(mem)

	require.NoError(t, sink.Append("a", "b", "a"))
	require.NoError(t, sink.Append("b", "c"))

	assert.Equal(t, []string{"a", "b", "c"}, mem.lines)
}
