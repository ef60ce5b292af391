package batch

import (
	"context"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

// RoundSummary describes one reconciliation round.
type RoundSummary struct {
	Round     int `json:"round"`
	Attempted int `json:"attempted"`
	Resolved  int `json:"resolved"`
	Remaining int `json:"remaining"`
}

// Reconciliation is what the retry rounds added to a run.
type Reconciliation struct {
	Records      []planner.KeywordMetrics
	StillMissing []string
	Rounds       []RoundSummary
	Failures     []ChunkFailure
}

// Reconciler re-submits missing keywords for a bounded number of rounds.
type Reconciler struct {
	orchestrator *Orchestrator
	log          *logger.Logger
}

func NewReconciler(o *Orchestrator) *Reconciler {
	return &Reconciler{
		orchestrator: o,
		log:          o.log.WithField("component", "reconciler"),
	}
}

// Reconcile runs up to MaxRounds rounds over missing. The remaining set only
// ever shrinks. Whatever is left after the last round is recorded as
// unresolved.
func (r *Reconciler) Reconcile(ctx context.Context, missing []string, target Target) (*Reconciliation, error) {
	o := r.orchestrator
	result := &Reconciliation{}
	remaining := dedupe(missing)

	for round := 1; round <= o.config.MaxRounds && len(remaining) > 0; round++ {
		o.progress.emit(Event{RunID: o.runID, Stage: StageRoundStart, Round: round, Submitted: len(remaining)})

		chunks, err := Split(remaining, o.config.ChunkSize)
		if err != nil {
			return nil, err
		}

		resolved := make(map[string]struct{})
		for i, chunk := range chunks {
			if i > 0 {
				if err := sleep(ctx, o.config.PacingDelay); err != nil {
					result.StillMissing = remaining
					return result, err
				}
			}

			outcome := o.ProcessChunk(ctx, chunk, target)
			for _, rec := range outcome.Records {
				resolved[rec.Keyword] = struct{}{}
			}
			result.Records = append(result.Records, outcome.Records...)
			if outcome.Err != nil {
				result.Failures = append(result.Failures, ChunkFailure{Round: round, Chunk: i + 1, Keywords: len(chunk), Err: outcome.Err})
				o.recorder.ObserveChunkFailure()
			}
			o.progress.emit(Event{
				RunID:       o.runID,
				Stage:       StageChunk,
				Round:       round,
				Chunk:       i + 1,
				TotalChunks: len(chunks),
				Submitted:   len(chunk),
				Resolved:    len(outcome.Records),
				Missing:     len(outcome.Missing),
				Err:         outcome.Err,
			})
		}

		attempted := len(remaining)
		next := make([]string, 0, len(remaining))
		for _, k := range remaining {
			if _, ok := resolved[k]; !ok {
				next = append(next, k)
			}
		}
		remaining = next

		summary := RoundSummary{Round: round, Attempted: attempted, Resolved: attempted - len(remaining), Remaining: len(remaining)}
		result.Rounds = append(result.Rounds, summary)
		r.log.WithFields(map[string]interface{}{
			"round":     round,
			"attempted": summary.Attempted,
			"resolved":  summary.Resolved,
			"remaining": summary.Remaining,
		}).Info("Reconciliation round complete")
		o.progress.emit(Event{
			RunID:     o.runID,
			Stage:     StageRoundComplete,
			Round:     round,
			Submitted: attempted,
			Resolved:  summary.Resolved,
			Missing:   summary.Remaining,
		})

		if err := ctx.Err(); err != nil {
			result.StillMissing = remaining
			return result, err
		}

		if len(remaining) > 0 && round < o.config.MaxRounds {
			o.progress.emit(Event{RunID: o.runID, Stage: StageCooldown, Round: round, Missing: len(remaining)})
			if err := sleep(ctx, o.config.Cooldown); err != nil {
				result.StillMissing = remaining
				return result, err
			}
		}
	}

	result.StillMissing = remaining
	if len(remaining) > 0 {
		r.log.WithField("unresolved", len(remaining)).Warn("Keywords still missing after reconciliation")
		o.recordMissing(remaining)
	}
	return result, nil
}
