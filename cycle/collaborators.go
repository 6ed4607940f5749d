package cycle

import (
	"context"
	"time"

	"github.com/promptcycle/promptcycle/execution"
)

// TestCase is one unit of work evaluated in every round.
type TestCase struct {
	ID       string
	Input    string
	Expected string
	Metadata map[string]any
}

// Output is what a Runner produces for one case. Usage figures come from
// the caller's cost summarizer and are consumed verbatim; this core only
// ever adds them.
type Output struct {
	Text       string
	Structured map[string]any
	Usage      execution.Usage
}

// Runner executes one test case against the current prompt. The core
// knows nothing about how the output is produced.
type Runner interface {
	Run(ctx context.Context, prompt string, tc TestCase) (*Output, error)
}

// CaseOutcome records one case's terminal execution result within a round.
// Failed cases are recorded here and never abort the round.
type CaseOutcome struct {
	Case     TestCase
	Status   execution.Status
	Output   *Output
	Err      error
	Duration time.Duration
}

// CaseVerdict is the judge's assessment of one case.
type CaseVerdict struct {
	CaseID    string
	Score     float64
	Passed    bool
	Reasoning string
}

// Report is the judge's aggregate assessment of a round. Fields carries
// arbitrary structured data addressable by termination conditions; Cost is
// the judge's own call cost.
type Report struct {
	Verdicts []CaseVerdict
	Score    float64
	Passed   bool
	Fields   map[string]any
	Cost     float64
}

// Judge evaluates a round's outcomes into a report with an aggregate score.
type Judge interface {
	Evaluate(ctx context.Context, prompt string, outcomes []CaseOutcome) (*Report, error)
}

// Suggestion is the improver's proposed next prompt. Cost is the
// improver's own call cost.
type Suggestion struct {
	Prompt    string
	Reasoning string
	Cost      float64
}

// Improver produces the next prompt from the current snapshot and the
// round's results.
type Improver interface {
	Improve(ctx context.Context, snapshot PromptSnapshot, report *Report, outcomes []CaseOutcome) (*Suggestion, error)
}
