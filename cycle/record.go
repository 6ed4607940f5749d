package cycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PromptSnapshot is an immutable capture of the prompt used in a round,
// retained for rollback and audit.
type PromptSnapshot struct {
	ID        string
	Round     int
	Prompt    string
	CreatedAt time.Time
}

// NewSnapshot captures the prompt entering the given round.
func NewSnapshot(round int, prompt string) PromptSnapshot {
	return PromptSnapshot{
		ID:        uuid.NewString(),
		Round:     round,
		Prompt:    prompt,
		CreatedAt: time.Now(),
	}
}

// Cost breaks a round's cost down by collaborator.
// Total is always Agent+Judge+Improver.
type Cost struct {
	Agent    float64
	Judge    float64
	Improver float64
	Total    float64
}

// RoundRecord is the immutable record of one completed round.
// ScoreDelta is nil for round 1, otherwise the difference between this
// round's aggregate score and the previous one's.
type RoundRecord struct {
	Round      int
	Report     *Report
	Cost       Cost
	ScoreDelta *float64
	Snapshot   PromptSnapshot
	Outcomes   []CaseOutcome
}

// Result is the terminal outcome of an improvement cycle.
type Result struct {
	ID                string
	Rounds            []RoundRecord
	TotalCost         float64
	TerminationReason string
	FinalSnapshot     PromptSnapshot
}

// SnapshotFor returns the prompt snapshot that entered the given round,
// enabling rollback to any recorded state.
func (r *Result) SnapshotFor(round int) (PromptSnapshot, error) {
	for _, rec := range r.Rounds {
		if rec.Round == round {
			return rec.Snapshot, nil
		}
	}
	return PromptSnapshot{}, fmt.Errorf("cycle: no record for round %d", round)
}

// BestRound returns the recorded round with the highest aggregate score.
func (r *Result) BestRound() (RoundRecord, bool) {
	if len(r.Rounds) == 0 {
		return RoundRecord{}, false
	}
	best := r.Rounds[0]
	for _, rec := range r.Rounds[1:] {
		if rec.Report != nil && (best.Report == nil || rec.Report.Score > best.Report.Score) {
			best = rec
		}
	}
	return best, true
}
