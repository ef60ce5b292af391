package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressReporter logs how many keywords of a run have been submitted.
type ProgressReporter struct {
	mu          sync.Mutex
	total       int
	current     int
	description string
	interval    time.Duration
	startTime   time.Time
	lastReport  time.Time
	logger      *Logger
}

// NewProgressReporter reports at most once per interval, and always when
// the total is reached.
func NewProgressReporter(total int, description string, interval time.Duration) *ProgressReporter {
	now := time.Now()
	return &ProgressReporter{
		total:       total,
		description: description,
		interval:    interval,
		startTime:   now,
		lastReport:  now,
		logger:      GetLogger().WithField("component", "progress"),
	}
}

func (pr *ProgressReporter) Add(n int) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.current += n
	if pr.current > pr.total {
		pr.current = pr.total
	}
	now := time.Now()
	if now.Sub(pr.lastReport) >= pr.interval || pr.current >= pr.total {
		pr.report()
		pr.lastReport = now
	}
}

func (pr *ProgressReporter) Complete() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.current = pr.total
	pr.report()
}

// Progress returns the current count, total and percentage.
func (pr *ProgressReporter) Progress() (current, total int, percentage float64) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.current, pr.total, pr.percentage()
}

func (pr *ProgressReporter) percentage() float64 {
	if pr.total == 0 {
		return 100
	}
	return float64(pr.current) / float64(pr.total) * 100
}

// report must be called with mu held.
func (pr *ProgressReporter) report() {
	elapsed := time.Since(pr.startTime)

	var eta string
	if pr.current > 0 && pr.current < pr.total {
		perItem := elapsed / time.Duration(pr.current)
		eta = fmt.Sprintf(" (ETA: %s)", (time.Duration(pr.total-pr.current) * perItem).Round(time.Second))
	}

	pct := pr.percentage()
	pr.logger.WithFields(map[string]interface{}{
		"progress":    fmt.Sprintf("%.1f%%", pct),
		"current":     pr.current,
		"total":       pr.total,
		"elapsed":     elapsed.Round(time.Second).String(),
		"description": pr.description,
	}).Info(fmt.Sprintf("%s: %d/%d (%.1f%%)%s", pr.description, pr.current, pr.total, pct, eta))
}
