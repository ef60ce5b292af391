package planner

import (
	"context"
	"time"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 3 * time.Second
)

// Retry re-runs a call with a fixed delay between attempts. maxAttempts
// counts the first try.
type Retry struct {
	maxAttempts int
	delay       time.Duration
	classifier  ErrorClassifier
	log         *logger.Logger
}

func NewRetry(maxAttempts int, delay time.Duration) *Retry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retry{
		maxAttempts: maxAttempts,
		delay:       delay,
		classifier:  NewProviderErrorClassifier(),
		log:         logger.GetLogger().WithField("component", "retry"),
	}
}

// WithClassifier swaps the error classifier.
func (r *Retry) WithClassifier(c ErrorClassifier) *Retry {
	r.classifier = c
	return r
}

// Execute runs fn until it succeeds, a fatal error occurs, attempts are
// exhausted or ctx is done. fn receives the 1-based attempt number.
func (r *Retry) Execute(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if r.classifier.ClassifyError(err) == ErrorSeverityFatal {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}

		r.log.WithFields(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": r.maxAttempts,
			"delay":        r.delay.String(),
		}).WithError(err).Warn("Provider call failed, retrying")

		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

func (r *Retry) MaxAttempts() int {
	return r.maxAttempts
}
