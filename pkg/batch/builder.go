package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

// RunnerBuilder validates run settings before building a Runner.
type RunnerBuilder struct {
	fetcher    planner.Fetcher
	config     Config
	maxPerCall int
	sink       MissingSink
	recorder   RunRecorder
	progress   Progress
	errors     []error
}

func NewRunnerBuilder() *RunnerBuilder {
	return &RunnerBuilder{
		config:     DefaultConfig(),
		maxPerCall: planner.DefaultMaxKeywordsPerCall,
	}
}

func (b *RunnerBuilder) WithFetcher(f planner.Fetcher) *RunnerBuilder {
	b.fetcher = f
	return b
}

// WithMaxKeywordsPerCall sets the provider ceiling the chunk size is checked
// against.
func (b *RunnerBuilder) WithMaxKeywordsPerCall(n int) *RunnerBuilder {
	if n <= 0 {
		b.errors = append(b.errors, fmt.Errorf("max keywords per call must be positive, got: %d", n))
		return b
	}
	b.maxPerCall = n
	return b
}

func (b *RunnerBuilder) WithChunkSize(size int) *RunnerBuilder {
	if size <= 0 {
		b.errors = append(b.errors, fmt.Errorf("%w, got: %d", ErrInvalidChunkSize, size))
		return b
	}
	b.config.ChunkSize = size
	return b
}

func (b *RunnerBuilder) WithPacingDelay(d time.Duration) *RunnerBuilder {
	if d < 0 {
		b.errors = append(b.errors, fmt.Errorf("pacing delay cannot be negative, got: %s", d))
		return b
	}
	b.config.PacingDelay = d
	return b
}

func (b *RunnerBuilder) WithReconciliation(maxRounds int, cooldown time.Duration) *RunnerBuilder {
	if maxRounds < 0 {
		b.errors = append(b.errors, fmt.Errorf("max rounds cannot be negative, got: %d", maxRounds))
		return b
	}
	if cooldown < 0 {
		b.errors = append(b.errors, fmt.Errorf("cooldown cannot be negative, got: %s", cooldown))
		return b
	}
	b.config.MaxRounds = maxRounds
	b.config.Cooldown = cooldown
	return b
}

func (b *RunnerBuilder) WithConfig(cfg Config) *RunnerBuilder {
	return b.WithChunkSize(cfg.ChunkSize).
		WithPacingDelay(cfg.PacingDelay).
		WithReconciliation(cfg.MaxRounds, cfg.Cooldown)
}

func (b *RunnerBuilder) WithMissingSink(s MissingSink) *RunnerBuilder {
	b.sink = s
	return b
}

func (b *RunnerBuilder) WithRecorder(r RunRecorder) *RunnerBuilder {
	b.recorder = r
	return b
}

func (b *RunnerBuilder) WithProgress(p Progress) *RunnerBuilder {
	b.progress = p
	return b
}

// Validate reports every accumulated problem at once.
func (b *RunnerBuilder) Validate() error {
	errs := append([]error(nil), b.errors...)
	if b.fetcher == nil {
		errs = append(errs, fmt.Errorf("fetcher is required"))
	}
	if b.config.ChunkSize > b.maxPerCall {
		errs = append(errs, fmt.Errorf("chunk size %d exceeds provider limit %d", b.config.ChunkSize, b.maxPerCall))
	}
	if len(errs) == 0 {
		return nil
	}

	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return fmt.Errorf("run configuration invalid: %s", strings.Join(messages, "; "))
}

func (b *RunnerBuilder) Build() (*Runner, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return NewRunner(b.fetcher, b.config, b.sink).
		WithRecorder(b.recorder).
		WithProgress(b.progress), nil
}
