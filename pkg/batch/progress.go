package batch

import "fmt"

// Stage identifies what a progress event reports.
type Stage string

const (
	StageChunk         Stage = "chunk"
	StagePassComplete  Stage = "pass_complete"
	StageRoundStart    Stage = "round_start"
	StageRoundComplete Stage = "round_complete"
	StageCooldown      Stage = "cooldown"
	StageRunComplete   Stage = "run_complete"
)

// Event is a progress notification. Round 0 is the initial pass.
type Event struct {
	RunID       string `json:"run_id,omitempty"`
	Stage       Stage  `json:"stage"`
	Round       int    `json:"round"`
	Chunk       int    `json:"chunk,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
	Submitted   int    `json:"submitted"`
	Resolved    int    `json:"resolved"`
	Missing     int    `json:"missing"`
	Err         error  `json:"-"`
}

// Progress receives events synchronously from the run loop.
type Progress func(Event)

func (e Event) String() string {
	switch e.Stage {
	case StageChunk:
		if e.Err != nil {
			return fmt.Sprintf("Batch %d of %d failed: %v", e.Chunk, e.TotalChunks, e.Err)
		}
		return fmt.Sprintf("Processed batch %d of %d: %d resolved, %d missing", e.Chunk, e.TotalChunks, e.Resolved, e.Missing)
	case StagePassComplete:
		return fmt.Sprintf("Initial pass complete: %d resolved, %d missing", e.Resolved, e.Missing)
	case StageRoundStart:
		return fmt.Sprintf("Retry round %d: re-submitting %d missing keywords", e.Round, e.Submitted)
	case StageRoundComplete:
		return fmt.Sprintf("Retry round %d complete: %d resolved, %d still missing", e.Round, e.Resolved, e.Missing)
	case StageCooldown:
		return fmt.Sprintf("Waiting before retry round %d", e.Round+1)
	case StageRunComplete:
		return fmt.Sprintf("Done: %d of %d keywords resolved, %d still missing", e.Resolved, e.Submitted, e.Missing)
	default:
		return string(e.Stage)
	}
}

func (p Progress) emit(e Event) {
	if p != nil {
		p(e)
	}
}
