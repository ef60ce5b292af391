package batch

import (
	"context"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

// Orchestrator submits keywords chunk by chunk through a Fetcher, which in
// production is a planner.Gate.
type Orchestrator struct {
	fetcher  planner.Fetcher
	config   Config
	sink     MissingSink
	recorder RunRecorder
	progress Progress
	runID    string
	log      *logger.Logger

	// attempted holds every keyword handed to the fetcher so far.
	attempted map[string]struct{}
}

func NewOrchestrator(fetcher planner.Fetcher, cfg Config, sink MissingSink) *Orchestrator {
	if sink == nil {
		sink = discardSink{}
	}
	return &Orchestrator{
		fetcher:   fetcher,
		config:    cfg,
		sink:      sink,
		recorder:  nopRunRecorder{},
		log:       logger.GetLogger().WithField("component", "batch_orchestrator"),
		attempted: make(map[string]struct{}),
	}
}

func (o *Orchestrator) WithProgress(p Progress) *Orchestrator {
	o.progress = p
	return o
}

func (o *Orchestrator) WithRecorder(r RunRecorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}
	return o
}

func (o *Orchestrator) withRunID(id string) *Orchestrator {
	o.runID = id
	o.log = o.log.WithField("run_id", id)
	return o
}

// Process makes one pass over keywords. Chunk failures are collected and
// the pass continues; only context cancellation stops it early, in which
// case the partial pass is returned with the context error.
func (o *Orchestrator) Process(ctx context.Context, keywords []string, target Target) (*Pass, error) {
	pass := &Pass{}
	if len(keywords) == 0 {
		return pass, nil
	}

	chunks, err := Split(keywords, o.config.ChunkSize)
	if err != nil {
		return nil, err
	}

	o.log.WithFields(map[string]interface{}{
		"keywords_count": len(keywords),
		"total_batches":  len(chunks),
		"geo_target_id":  target.GeoTargetID,
	}).Info("Starting keyword pass")

	resolved := 0
	for i, chunk := range chunks {
		if i > 0 {
			if err := sleep(ctx, o.config.PacingDelay); err != nil {
				return pass, err
			}
		}

		outcome := o.ProcessChunk(ctx, chunk, target)
		pass.Records = append(pass.Records, outcome.Records...)
		pass.Missing = append(pass.Missing, outcome.Missing...)
		resolved += len(outcome.Records)

		if outcome.Err != nil {
			pass.Failures = append(pass.Failures, ChunkFailure{Round: 0, Chunk: i + 1, Keywords: len(chunk), Err: outcome.Err})
			o.recorder.ObserveChunkFailure()
		}
		o.progress.emit(Event{
			RunID:       o.runID,
			Stage:       StageChunk,
			Chunk:       i + 1,
			TotalChunks: len(chunks),
			Submitted:   len(chunk),
			Resolved:    len(outcome.Records),
			Missing:     len(outcome.Missing),
			Err:         outcome.Err,
		})

		if err := ctx.Err(); err != nil {
			return pass, err
		}
	}

	o.progress.emit(Event{
		RunID:     o.runID,
		Stage:     StagePassComplete,
		Submitted: len(keywords),
		Resolved:  resolved,
		Missing:   len(pass.Missing),
	})
	return pass, nil
}

// ProcessChunk submits one chunk. On failure the whole chunk is missing and
// Err carries the provider error. Missing keywords go to the sink.
func (o *Orchestrator) ProcessChunk(ctx context.Context, chunk []string, target Target) Outcome {
	outcome := Outcome{Submitted: chunk}
	for _, k := range chunk {
		o.attempted[k] = struct{}{}
	}

	records, err := o.fetcher.Fetch(ctx, chunk, target.GeoTargetID, target.LanguageID)
	if err != nil {
		outcome.Err = err
		outcome.Missing = append([]string(nil), chunk...)
		o.log.WithError(err).WithField("batch_size", len(chunk)).Error("Batch failed after retries")
		o.recordMissing(outcome.Missing)
		return outcome
	}

	submitted := make(map[string]struct{}, len(chunk))
	for _, k := range chunk {
		submitted[k] = struct{}{}
	}

	resolved := make(map[string]struct{}, len(records))
	outcome.Records = make([]planner.KeywordMetrics, 0, len(records))
	unexpected := 0
	for _, r := range records {
		if _, ok := submitted[r.Keyword]; !ok {
			unexpected++
			continue
		}
		resolved[r.Keyword] = struct{}{}
		outcome.Records = append(outcome.Records, r)
	}
	if unexpected > 0 {
		o.log.WithField("unexpected_records", unexpected).Warn("Provider returned keywords that were not submitted; dropped")
	}

	for _, k := range chunk {
		if _, ok := resolved[k]; !ok {
			outcome.Missing = append(outcome.Missing, k)
		}
	}

	if len(outcome.Missing) > 0 {
		o.log.WithFields(map[string]interface{}{
			"batch_size": len(chunk),
			"missing":    len(outcome.Missing),
		}).Info("Provider omitted keywords from batch")
		o.recordMissing(outcome.Missing)
	}
	return outcome
}

// Attempted reports whether keyword has been submitted to the fetcher.
func (o *Orchestrator) Attempted(keyword string) bool {
	_, ok := o.attempted[keyword]
	return ok
}

func (o *Orchestrator) recordMissing(keywords []string) {
	if err := o.sink.Append(keywords...); err != nil {
		o.log.WithError(err).WithField("keywords_count", len(keywords)).Error("Failed to append to missing keyword log")
	}
}
