package execution

import (
	"fmt"
	"sync/atomic"
	"time"
)

// executionCounter provides a monotonically increasing counter for unique execution IDs.
var executionCounter uint64

// Status is the lifecycle state of an execution.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusEmitting  Status = "emitting"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether the status is one of the three terminal outcomes.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Usage aggregates token and cost figures for the calls made by one execution.
// Figures come from the caller's cost summarizer and are consumed verbatim.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

func (u *Usage) add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Cost += other.Cost
}

// Summary describes how an execution ran, regardless of its outcome.
// It is present on every terminal result.
type Summary struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Calls     int           `json:"calls"`
	Usage     Usage         `json:"usage"`
}

// Result is the single terminal outcome of an execution. Exactly one of the
// three terminal statuses is set, and it never changes once assigned.
// Value is meaningful only when Status is StatusSucceeded; Err only when
// Status is StatusFailed.
type Result[T any] struct {
	Status  Status
	Value   T
	Err     error
	Summary Summary
}

// generateExecutionID returns a process-unique execution identifier.
// Uses an atomic counter combined with timestamp to prevent collisions under concurrency.
func generateExecutionID() string {
	id := atomic.AddUint64(&executionCounter, 1)
	return fmt.Sprintf("exec_%d_%d", time.Now().UnixNano(), id)
}
