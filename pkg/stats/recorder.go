// Package stats exposes provider-call and run statistics as Prometheus
// metrics.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "keyword_planner"

// Keyword states used as the "state" label.
const (
	StateRequested  = "requested"
	StateResolved   = "resolved"
	StateUnresolved = "unresolved"
)

// Recorder implements planner.CallRecorder and batch.RunRecorder.
type Recorder struct {
	providerCalls *prometheus.CounterVec
	callDuration  prometheus.Histogram
	keywords      *prometheus.CounterVec
	chunkFailures prometheus.Counter
	runDuration   prometheus.Histogram

	calls    atomic.Uint64
	failures atomic.Uint64
	runs     atomic.Uint64

	mu   sync.RWMutex
	last RunSummary
}

// RunSummary describes the most recent completed run.
type RunSummary struct {
	Requested  int
	Resolved   int
	Unresolved int
	Duration   time.Duration
	FinishedAt time.Time
}

// Snapshot is a point-in-time copy of the in-process counters.
type Snapshot struct {
	ProviderCalls uint64
	ChunkFailures uint64
	Runs          uint64
	LastRun       RunSummary
}

// NewRecorder registers the collectors with reg. Pass a fresh
// prometheus.NewRegistry() when nothing scrapes the process.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider call attempts by outcome.",
		}, []string{"outcome"}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		keywords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keywords_total",
			Help:      "Keywords by final state.",
		}, []string{"state"}),
		chunkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_failures_total",
			Help:      "Chunks whose provider call failed after all retries.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of complete runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	reg.MustRegister(r.providerCalls, r.callDuration, r.keywords, r.chunkFailures, r.runDuration, &lastRunCollector{recorder: r})
	return r
}

func (r *Recorder) ObserveProviderCall(outcome string, duration time.Duration) {
	r.calls.Add(1)
	r.providerCalls.WithLabelValues(outcome).Inc()
	r.callDuration.Observe(duration.Seconds())
}

func (r *Recorder) ObserveChunkFailure() {
	r.failures.Add(1)
	r.chunkFailures.Inc()
}

func (r *Recorder) ObserveRun(requested, resolved, unresolved int, duration time.Duration) {
	r.runs.Add(1)
	r.keywords.WithLabelValues(StateRequested).Add(float64(requested))
	r.keywords.WithLabelValues(StateResolved).Add(float64(resolved))
	r.keywords.WithLabelValues(StateUnresolved).Add(float64(unresolved))
	r.runDuration.Observe(duration.Seconds())

	r.mu.Lock()
	r.last = RunSummary{
		Requested:  requested,
		Resolved:   resolved,
		Unresolved: unresolved,
		Duration:   duration,
		FinishedAt: time.Now(),
	}
	r.mu.Unlock()
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	last := r.last
	r.mu.RUnlock()

	return Snapshot{
		ProviderCalls: r.calls.Load(),
		ChunkFailures: r.failures.Load(),
		Runs:          r.runs.Load(),
		LastRun:       last,
	}
}

var lastRunDesc = prometheus.NewDesc(
	namespace+"_last_run_keywords",
	"Keyword counts of the most recent run by state.",
	[]string{"state"},
	nil,
)

// lastRunCollector reads the last run summary on each scrape.
type lastRunCollector struct {
	recorder *Recorder
}

func (c *lastRunCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- lastRunDesc
}

func (c *lastRunCollector) Collect(ch chan<- prometheus.Metric) {
	last := c.recorder.Snapshot().LastRun
	if last.FinishedAt.IsZero() {
		return
	}
	for state, v := range map[string]int{
		StateRequested:  last.Requested,
		StateResolved:   last.Resolved,
		StateUnresolved: last.Unresolved,
	} {
		ch <- prometheus.MustNewConstMetric(lastRunDesc, prometheus.GaugeValue, float64(v), state)
	}
}
