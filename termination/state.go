package termination

import "strings"

// State is the accumulated view of an iterative process that conditions
// are evaluated against, once per round after the round's report, cost,
// and score are finalized.
type State struct {
	// Round is the 1-based number of the round just completed.
	Round int
	// TotalCost is the cost accumulated across all rounds so far.
	TotalCost float64
	// Score is the latest aggregate score; HasScore is false until a
	// round has produced one.
	Score    float64
	HasScore bool
	// Fields holds arbitrary structured result data, addressed by
	// dot-separated paths.
	Fields map[string]any
}

// Lookup resolves a dot-separated path into the structured fields.
// Intermediate segments must be map[string]any values.
func (s *State) Lookup(path string) (any, bool) {
	if s == nil || s.Fields == nil || path == "" {
		return nil, false
	}
	var current any = s.Fields
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
