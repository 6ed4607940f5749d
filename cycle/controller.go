// Package cycle orchestrates repeated rounds of execute→evaluate→improve
// until a termination condition fires, accumulating cost and score and
// retaining a prompt snapshot per round for rollback.
package cycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/promptcycle/promptcycle/execution"
	"github.com/promptcycle/promptcycle/internal/metrics"
	"github.com/promptcycle/promptcycle/limiter"
	"github.com/promptcycle/promptcycle/termination"
)

const (
	// DefaultMaxRounds is the safety cap applied when none is configured.
	DefaultMaxRounds = 10
	// DefaultConcurrency bounds simultaneous case executions per round.
	DefaultConcurrency = 4
)

// Config holds the controller parameters. Invalid values fail fast at
// construction, before any asynchronous work starts.
type Config struct {
	// Conditions is the user-supplied termination condition list; the
	// round's stop decision is their OR. Must not be empty.
	Conditions []termination.Condition
	// MaxRounds is a safety cap independent of the conditions. 0 means
	// DefaultMaxRounds.
	MaxRounds int
	// Concurrency bounds simultaneous case executions. 0 means
	// DefaultConcurrency.
	Concurrency int
}

// Controller drives the improvement cycle. It exclusively owns the growing
// round list and the current prompt snapshot, replacing the latter on each
// successful improvement step.
type Controller struct {
	cfg      Config
	runner   Runner
	judge    Judge
	improver Improver
	gate     *limiter.Limiter
	engine   *termination.Engine
	logger   *zap.Logger
	stats    *metrics.Collector
}

// ControllerOption configures a Controller at construction.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger. A nil logger falls back to a no-op.
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches a metrics collector recording per-execution and
// per-round figures.
func WithMetrics(collector *metrics.Collector) ControllerOption {
	return func(c *Controller) { c.stats = collector }
}

// NewController validates the configuration and wires the controller.
func NewController(cfg Config, runner Runner, judge Judge, improver Improver, opts ...ControllerOption) (*Controller, error) {
	if runner == nil {
		return nil, errors.New("cycle: runner is required")
	}
	if judge == nil {
		return nil, errors.New("cycle: judge is required")
	}
	if improver == nil {
		return nil, errors.New("cycle: improver is required")
	}
	if cfg.MaxRounds < 0 {
		return nil, fmt.Errorf("cycle: max rounds must not be negative, got %d", cfg.MaxRounds)
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("cycle: concurrency must not be negative, got %d", cfg.Concurrency)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	c := &Controller{
		cfg:      cfg,
		runner:   runner,
		judge:    judge,
		improver: improver,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "round_controller"))

	gate, err := limiter.New(cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	c.gate = gate

	engine, err := termination.NewEngine(cfg.Conditions, c.logger)
	if err != nil {
		return nil, err
	}
	c.engine = engine

	return c, nil
}

// Run drives rounds until a termination condition fires or the safety cap
// is reached. Per-case failures are recorded in the round's outcomes and
// never abort the round; judge and improver errors abort the entire cycle.
// Cancellation is checked before each block of collaborator calls.
func (c *Controller) Run(ctx context.Context, prompt string, cases []TestCase) (*Result, error) {
	if len(cases) == 0 {
		return nil, errors.New("cycle: at least one test case is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := &Result{ID: uuid.NewString()}
	snapshot := NewSnapshot(1, prompt)
	var prevScore float64
	var totalCost float64

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cycle canceled before round %d: %w", round, err)
		}

		c.logger.Info("starting round",
			zap.Int("round", round),
			zap.Int("cases", len(cases)),
			zap.String("snapshot_id", snapshot.ID),
		)

		outcomes := c.runCases(ctx, snapshot.Prompt, cases)
		agentCost := sumAgentCost(outcomes)

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cycle canceled before judging round %d: %w", round, err)
		}
		report, err := c.judge.Evaluate(ctx, snapshot.Prompt, outcomes)
		if err != nil {
			return nil, fmt.Errorf("judge failed in round %d: %w", round, err)
		}

		var delta *float64
		if round > 1 {
			d := report.Score - prevScore
			delta = &d
		}
		prevScore = report.Score

		record := RoundRecord{
			Round:      round,
			Report:     report,
			Snapshot:   snapshot,
			Outcomes:   outcomes,
			ScoreDelta: delta,
			Cost:       Cost{Agent: agentCost, Judge: report.Cost},
		}
		record.Cost.Total = record.Cost.Agent + record.Cost.Judge
		totalCost += record.Cost.Total

		state := &termination.State{
			Round:     round,
			TotalCost: totalCost,
			Score:     report.Score,
			HasScore:  true,
			Fields:    report.Fields,
		}
		stop, reason := c.engine.Evaluate(state)
		if !stop && round >= c.cfg.MaxRounds {
			stop = true
			reason = fmt.Sprintf("safety round cap (%d) reached", c.cfg.MaxRounds)
		}

		if stop {
			if c.stats != nil {
				c.stats.RecordRound(report.Score, record.Cost.Total)
			}
			result.Rounds = append(result.Rounds, record)
			result.TotalCost = totalCost
			result.TerminationReason = reason
			result.FinalSnapshot = snapshot
			c.logger.Info("cycle terminated",
				zap.Int("rounds", round),
				zap.Float64("total_cost", totalCost),
				zap.String("reason", reason),
			)
			return result, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cycle canceled before improving round %d: %w", round, err)
		}
		suggestion, err := c.improver.Improve(ctx, snapshot, report, outcomes)
		if err != nil {
			return nil, fmt.Errorf("improver failed in round %d: %w", round, err)
		}

		record.Cost.Improver = suggestion.Cost
		record.Cost.Total += suggestion.Cost
		totalCost += suggestion.Cost
		if c.stats != nil {
			c.stats.RecordRound(report.Score, record.Cost.Total)
		}
		result.Rounds = append(result.Rounds, record)

		c.logger.Info("round complete, prompt improved",
			zap.Int("round", round),
			zap.Float64("score", report.Score),
			zap.Float64("round_cost", record.Cost.Total),
		)
		snapshot = NewSnapshot(round+1, suggestion.Prompt)
	}
}

// runCases fans the round's cases out through execution hosts, bounded by
// the concurrency gate. Every case yields a terminal outcome; failures are
// captured, never propagated.
func (c *Controller) runCases(ctx context.Context, prompt string, cases []TestCase) []CaseOutcome {
	outcomes := make([]CaseOutcome, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range cases {
		g.Go(func() error {
			c.gate.Acquire()
			defer c.gate.Release()

			if err := gctx.Err(); err != nil {
				outcomes[i] = CaseOutcome{Case: tc, Status: execution.StatusCanceled, Err: err}
				return nil
			}

			var host *execution.Host[*Output]
			host = execution.NewHost(func(hctx context.Context) (*Output, error) {
				out, err := c.runner.Run(hctx, prompt, tc)
				if err == nil && out != nil {
					host.RecordUsage(out.Usage)
				}
				return out, err
			}, execution.WithLogger[*Output](c.logger))

			res := host.Run(gctx)
			outcome := CaseOutcome{Case: tc, Status: res.Status, Duration: res.Summary.Duration}
			if res.Status == execution.StatusSucceeded {
				outcome.Output = res.Value
			} else {
				outcome.Err = res.Err
				c.logger.Warn("case execution did not succeed",
					zap.String("case_id", tc.ID),
					zap.String("status", string(res.Status)),
					zap.Error(res.Err),
				)
			}
			outcomes[i] = outcome

			if c.stats != nil {
				c.stats.RecordExecution(string(res.Status), res.Summary.Duration)
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func sumAgentCost(outcomes []CaseOutcome) float64 {
	var cost float64
	for _, o := range outcomes {
		if o.Output != nil {
			cost += o.Output.Usage.Cost
		}
	}
	return cost
}
