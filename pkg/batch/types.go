// Package batch drives keyword lookups through the provider in serialized
// chunks and reconciles keywords the provider left out.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

// Target is the geography and language every call in a run is scoped to.
type Target struct {
	Country     string `json:"country"`
	GeoTargetID string `json:"geo_target_id"`
	LanguageID  string `json:"language_id"`
}

// Request is one user submission.
type Request struct {
	Keywords []string
	Target   Target
}

// Outcome is the result of submitting one chunk. A non-empty Missing with a
// nil Err means the provider silently dropped keywords.
type Outcome struct {
	Submitted []string
	Records   []planner.KeywordMetrics
	Missing   []string
	Err       error
}

// ChunkFailure records a chunk whose call failed after all retries.
type ChunkFailure struct {
	Round    int   `json:"round"`
	Chunk    int   `json:"chunk"`
	Keywords int   `json:"keywords"`
	Err      error `json:"-"`
}

func (f ChunkFailure) Error() string {
	return fmt.Sprintf("round %d chunk %d (%d keywords): %v", f.Round, f.Chunk, f.Keywords, f.Err)
}

// Pass is the result of one sweep over the full keyword list.
type Pass struct {
	Records  []planner.KeywordMetrics
	Missing  []string
	Failures []ChunkFailure
}

// MissingSink receives keywords that the provider did not resolve.
type MissingSink interface {
	Append(keywords ...string) error
}

type discardSink struct{}

func (discardSink) Append(...string) error { return nil }

// RunRecorder observes run-level statistics.
type RunRecorder interface {
	ObserveChunkFailure()
	ObserveRun(requested, resolved, unresolved int, duration time.Duration)
}

type nopRunRecorder struct{}

func (nopRunRecorder) ObserveChunkFailure() {}
func (nopRunRecorder) ObserveRun(int, int, int, time.Duration) {}

// Config is the pacing and reconciliation policy of a run.
type Config struct {
	ChunkSize   int           `mapstructure:"chunk_size"`
	PacingDelay time.Duration `mapstructure:"pacing_delay"`
	MaxRounds   int           `mapstructure:"max_rounds"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:   planner.DefaultMaxKeywordsPerCall,
		PacingDelay: 3 * time.Second,
		MaxRounds:   2,
		Cooldown:    30 * time.Second,
	}
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
