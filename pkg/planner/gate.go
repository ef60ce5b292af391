package planner

import (
	"context"
	"time"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
)

// Call outcomes reported to a CallRecorder.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable_error"
	OutcomeFatal     = "fatal_error"
)

// CallRecorder observes every provider attempt that passes the gate.
type CallRecorder interface {
	ObserveProviderCall(outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProviderCall(string, time.Duration) {}

// GateConfig holds the pacing and retry policy applied to provider calls.
type GateConfig struct {
	RateInterval time.Duration `mapstructure:"rate_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		RateInterval: DefaultRateInterval,
		MaxAttempts:  DefaultMaxAttempts,
		RetryDelay:   DefaultRetryDelay,
	}
}

// Gate wraps a Fetcher so that each attempt is throttled and failed
// attempts are retried with a fixed delay.
type Gate struct {
	next       Fetcher
	throttle   *Throttle
	retry      *Retry
	classifier ErrorClassifier
	recorder   CallRecorder
	log        *logger.Logger
}

func NewGate(next Fetcher, cfg GateConfig) *Gate {
	classifier := NewProviderErrorClassifier()
	return &Gate{
		next:       next,
		throttle:   NewThrottle(cfg.RateInterval),
		retry:      NewRetry(cfg.MaxAttempts, cfg.RetryDelay).WithClassifier(classifier),
		classifier: classifier,
		recorder:   nopRecorder{},
		log:        logger.GetLogger().WithField("component", "gate"),
	}
}

// WithRecorder attaches a call recorder. A nil recorder disables recording.
func (g *Gate) WithRecorder(r CallRecorder) *Gate {
	if r == nil {
		r = nopRecorder{}
	}
	g.recorder = r
	return g
}

func (g *Gate) Fetch(ctx context.Context, keywords []string, geoTargetID, languageID string) ([]KeywordMetrics, error) {
	var records []KeywordMetrics

	err := g.retry.Execute(ctx, func(attempt int) error {
		return g.throttle.Execute(ctx, func() error {
			start := time.Now()
			result, err := g.next.Fetch(ctx, keywords, geoTargetID, languageID)
			g.recorder.ObserveProviderCall(g.outcome(err), time.Since(start))
			if err != nil {
				return err
			}
			if attempt > 1 {
				g.log.WithFields(map[string]interface{}{
					"attempt":        attempt,
					"keywords_count": len(keywords),
				}).Info("Provider call succeeded after retry")
			}
			records = result
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (g *Gate) outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case g.classifier.ClassifyError(err) == ErrorSeverityFatal:
		return OutcomeFatal
	default:
		return OutcomeRetryable
	}
}
