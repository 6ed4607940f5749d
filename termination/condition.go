// Package termination decides when an iterative run→evaluate→improve
// process should stop, using composable predicates over round state.
package termination

import (
	"fmt"
	"reflect"
)

// Condition is a stopping predicate over round state. Met must be free of
// side effects; the same state may be probed by several conditions.
type Condition interface {
	Met(s *State) bool
	// String returns a human-readable description used as the
	// termination reason when the condition fires.
	String() string
}

type condition struct {
	desc string
	met  func(s *State) bool
}

func (c *condition) Met(s *State) bool { return c.met(s) }
func (c *condition) String() string    { return c.desc }

// MaxRounds is met once the current round number reaches n.
func MaxRounds(n int) Condition {
	return &condition{
		desc: fmt.Sprintf("maxRounds(%d)", n),
		met:  func(s *State) bool { return s.Round >= n },
	}
}

// MaxCost is met once accumulated cost reaches the budget.
func MaxCost(budget float64) Condition {
	return &condition{
		desc: fmt.Sprintf("maxCost(%g)", budget),
		met:  func(s *State) bool { return s.TotalCost >= budget },
	}
}

// TargetScore is met once the latest score reaches the threshold. It is
// never met before any score exists.
func TargetScore(threshold float64) Condition {
	return &condition{
		desc: fmt.Sprintf("targetScore(%g)", threshold),
		met:  func(s *State) bool { return s.HasScore && s.Score >= threshold },
	}
}

// FieldSet is met once any value exists at the given structured path.
func FieldSet(path string) Condition {
	return &condition{
		desc: fmt.Sprintf("fieldSet(%s)", path),
		met: func(s *State) bool {
			_, ok := s.Lookup(path)
			return ok
		},
	}
}

// FieldValue is met once the value at the path equals want.
func FieldValue(path string, want any) Condition {
	return &condition{
		desc: fmt.Sprintf("fieldValue(%s=%v)", path, want),
		met: func(s *State) bool {
			got, ok := s.Lookup(path)
			return ok && reflect.DeepEqual(got, want)
		},
	}
}

// Custom wraps an arbitrary caller-supplied predicate.
func Custom(desc string, predicate func(s *State) bool) Condition {
	if desc == "" {
		desc = "custom"
	}
	return &condition{desc: desc, met: predicate}
}
