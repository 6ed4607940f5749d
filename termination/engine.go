package termination

import (
	"errors"

	"go.uber.org/zap"
)

// ErrNoConditions is returned when an engine is built without conditions.
var ErrNoConditions = errors.New("termination: at least one condition is required")

// Engine evaluates a user-supplied condition list against round state.
// The overall stop decision is the OR of the list.
type Engine struct {
	conds  []Condition
	logger *zap.Logger
}

// NewEngine creates an engine over the given conditions. An empty list is
// a configuration error and fails fast.
func NewEngine(conds []Condition, logger *zap.Logger) (*Engine, error) {
	if len(conds) == 0 {
		return nil, ErrNoConditions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		conds:  conds,
		logger: logger.With(zap.String("component", "termination_engine")),
	}, nil
}

// Evaluate reports whether any condition is met, along with the first met
// condition's description as the termination reason.
func (e *Engine) Evaluate(s *State) (bool, string) {
	for _, c := range e.conds {
		if c.Met(s) {
			e.logger.Debug("termination condition met",
				zap.String("condition", c.String()),
				zap.Int("round", s.Round),
				zap.Float64("total_cost", s.TotalCost),
			)
			return true, c.String()
		}
	}
	return false, ""
}
