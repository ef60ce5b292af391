package batch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/export"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/trend"
)

var ErrNoTarget = errors.New("geo target id is required")

// Report summarises a complete run. Partial success is success: Table holds
// everything resolved, StillMissing everything that was not.
type Report struct {
	RunID        string
	Target       Target
	Requested    int
	Table        *export.Table
	StillMissing []string
	Failures     []ChunkFailure
	Rounds       []RoundSummary
	Duration     time.Duration
}

// Resolved is the number of distinct keywords with data.
func (r *Report) Resolved() int {
	if r.Table == nil {
		return 0
	}
	return r.Table.Len()
}

// Runner drives a full run: one pass, then reconciliation rounds, then the
// derived-metrics table.
type Runner struct {
	fetcher  planner.Fetcher
	config   Config
	sink     MissingSink
	recorder RunRecorder
	progress Progress
	log      *logger.Logger
}

func NewRunner(fetcher planner.Fetcher, cfg Config, sink MissingSink) *Runner {
	if sink == nil {
		sink = discardSink{}
	}
	return &Runner{
		fetcher:  fetcher,
		config:   cfg,
		sink:     sink,
		recorder: nopRunRecorder{},
		log:      logger.GetLogger().WithField("component", "runner"),
	}
}

func (r *Runner) WithProgress(p Progress) *Runner {
	r.progress = p
	return r
}

func (r *Runner) WithRecorder(rec RunRecorder) *Runner {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// Run executes req. A cancelled context returns the partial report along
// with the context error.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Target.GeoTargetID == "" {
		return nil, ErrNoTarget
	}
	if r.config.ChunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	start := time.Now()
	keywords := dedupe(req.Keywords)
	report := &Report{
		RunID:     uuid.NewString(),
		Target:    req.Target,
		Requested: len(keywords),
		Table:     export.NewTable(),
	}
	log := r.log.WithField("run_id", report.RunID)
	log.WithFields(map[string]interface{}{
		"keywords_count": len(keywords),
		"country":        req.Target.Country,
		"geo_target_id":  req.Target.GeoTargetID,
		"language_id":    req.Target.LanguageID,
	}).Info("Starting keyword run")

	sink := newOnceSink(r.sink)
	orchestrator := NewOrchestrator(r.fetcher, r.config, sink).
		WithProgress(r.progress).
		WithRecorder(r.recorder).
		withRunID(report.RunID)

	pass, err := orchestrator.Process(ctx, keywords, req.Target)
	if pass != nil {
		report.Table.Merge(trend.Apply(pass.Records))
		report.Failures = append(report.Failures, pass.Failures...)
	}
	if err != nil {
		return r.finish(report, keywords, orchestrator, sink, start), err
	}

	reconciliation, err := NewReconciler(orchestrator).Reconcile(ctx, pass.Missing, req.Target)
	if reconciliation != nil {
		report.Table.Merge(trend.Apply(reconciliation.Records))
		report.Failures = append(report.Failures, reconciliation.Failures...)
		report.Rounds = reconciliation.Rounds
	}

	r.finish(report, keywords, orchestrator, sink, start)
	r.progress.emit(Event{
		RunID:     report.RunID,
		Stage:     StageRunComplete,
		Submitted: report.Requested,
		Resolved:  report.Resolved(),
		Missing:   len(report.StillMissing),
	})
	log.WithFields(map[string]interface{}{
		"requested":     report.Requested,
		"resolved":      report.Resolved(),
		"still_missing": len(report.StillMissing),
		"failed_chunks": len(report.Failures),
		"duration":      report.Duration.String(),
	}).Info("Keyword run complete")

	return report, err
}

// finish derives StillMissing from the table so that every requested
// keyword is either resolved or missing, never both. Only keywords that
// reached the fetcher are recorded in the sink; a cancelled run leaves the
// rest out of the log.
func (r *Runner) finish(report *Report, keywords []string, orchestrator *Orchestrator, sink MissingSink, start time.Time) *Report {
	report.StillMissing = report.StillMissing[:0]
	var unresolved []string
	for _, k := range keywords {
		if report.Table.Has(k) {
			continue
		}
		report.StillMissing = append(report.StillMissing, k)
		if orchestrator.Attempted(k) {
			unresolved = append(unresolved, k)
		}
	}
	if len(unresolved) > 0 {
		if err := sink.Append(unresolved...); err != nil {
			r.log.WithError(err).Error("Failed to record unresolved keywords")
		}
	}
	report.Duration = time.Since(start)
	r.recorder.ObserveRun(report.Requested, report.Resolved(), len(report.StillMissing), report.Duration)
	return report
}
