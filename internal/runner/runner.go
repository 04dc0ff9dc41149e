// Package runner evaluates one requirement with every configured agent and
// aggregates whatever completes before the request deadline.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/johnayoung/req-analyzer/internal/agent"
	"github.com/johnayoung/req-analyzer/internal/consensus"
	"github.com/johnayoung/req-analyzer/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Config holds the static evaluation limits.
type Config struct {
	// Timeout bounds the whole evaluation; zero means no deadline.
	Timeout time.Duration
	// MaxLength is the maximum requirement length in characters; zero means unlimited.
	MaxLength int
	// Concurrency caps agents in flight; zero runs every agent at once, one runs them in order.
	Concurrency int
}

// Callbacks receive per-agent progress. They may be called from several
// goroutines but never concurrently with each other.
type Callbacks struct {
	OnAgentStart    func(dimension string)
	OnAgentComplete func(dimension string, j agent.Judgment, elapsed time.Duration)
	OnAgentError    func(dimension string, err error)
}

// Refiner rewrites a requirement that scored too low.
type Refiner interface {
	Refine(ctx context.Context, req agent.Requirement) (string, error)
}

// Runner orchestrates the agents for one requirement at a time. It holds no
// per-request state and is safe for concurrent use.
type Runner struct {
	agents     []agent.Agent
	aggregator *consensus.Aggregator
	cfg        Config
	logger     *slog.Logger
	callbacks  *Callbacks
	refiner    Refiner
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithCallbacks registers progress callbacks.
func WithCallbacks(cb *Callbacks) Option {
	return func(r *Runner) { r.callbacks = cb }
}

// WithRefiner enables rewriting of requirements whose verdict is refinement_required.
func WithRefiner(rf Refiner) Option {
	return func(r *Runner) { r.refiner = rf }
}

// New creates a runner. The agent order is the configuration order used for
// aggregation.
func New(agents []agent.Agent, cfg Config, opts ...Option) (*Runner, error) {
	if len(agents) == 0 {
		return nil, errors.New("runner: at least one agent required")
	}

	order := make([]string, 0, len(agents))
	for _, a := range agents {
		if slices.Contains(order, a.Dimension()) {
			return nil, fmt.Errorf("runner: duplicate agent for dimension %q", a.Dimension())
		}
		order = append(order, a.Dimension())
	}

	r := &Runner{
		agents:     slices.Clone(agents),
		aggregator: consensus.NewAggregator(order),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Component(r.logger, "runner")
	return r, nil
}

// Dimensions returns the configured dimensions in order.
func (r *Runner) Dimensions() []string {
	dims := make([]string, len(r.agents))
	for i, a := range r.agents {
		dims[i] = a.Dimension()
	}
	return dims
}

// Validate checks requirement text against the configured limits.
func (r *Runner) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Reason: "requirement text is empty"}
	}
	if n := utf8.RuneCountInString(text); r.cfg.MaxLength > 0 && n > r.cfg.MaxLength {
		return &ValidationError{Reason: fmt.Sprintf("requirement has %d characters, maximum is %d", n, r.cfg.MaxLength)}
	}
	return nil
}

// Evaluate is shorthand for EvaluateRequirement with text only.
func (r *Runner) Evaluate(ctx context.Context, text string) (consensus.Result, error) {
	return r.EvaluateRequirement(ctx, agent.Requirement{Text: text})
}

// EvaluateRequirement runs every agent against req and aggregates the
// judgments that arrive before the deadline. A failing agent is logged and
// reported as missing; only when all of them fail is an error returned.
func (r *Runner) EvaluateRequirement(ctx context.Context, req agent.Requirement) (consensus.Result, error) {
	if err := r.Validate(req.Text); err != nil {
		return consensus.Result{}, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	logger := r.logger.With(slog.String("requirement_id", req.ID))
	start := time.Now()

	outcomes := r.dispatch(ctx, req)

	var (
		judgments []agent.Judgment
		missing   []consensus.MissingDimension
		failures  []error
	)
	for i, o := range outcomes {
		dim := r.agents[i].Dimension()
		err := o.err
		if !o.done {
			err = &agent.EvaluationFailedError{Dimension: dim, Cause: abandonCause(ctx)}
		}
		if err != nil {
			logger.Warn("agent failed", slog.String("dimension", dim), slog.Any("error", err))
			missing = append(missing, consensus.MissingDimension{Dimension: dim, Reason: err.Error()})
			failures = append(failures, err)
			continue
		}
		judgments = append(judgments, o.judgment)
	}

	if len(judgments) == 0 {
		return consensus.Result{}, &NoAgentsSucceededError{Failures: failures}
	}

	res, err := r.aggregator.Aggregate(judgments, missing)
	if err != nil {
		return consensus.Result{}, err
	}
	res.RequirementID = req.ID
	res.Requirement = req.Text

	if r.refiner != nil && res.Verdict == consensus.VerdictRefinementRequired {
		refined, err := r.refiner.Refine(ctx, req)
		if err != nil {
			logger.Warn("refinement failed", slog.Any("error", err))
		} else {
			res.RefinedRequirement = refined
		}
	}

	logger.Info("evaluation complete",
		slog.Int("overall_score", res.OverallScore),
		slog.String("verdict", string(res.Verdict)),
		slog.Int("present", len(res.Breakdown)),
		slog.Int("missing", len(res.Missing)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

type outcome struct {
	judgment agent.Judgment
	err      error
	done     bool
}

// dispatch runs the agents and returns one outcome per agent, indexed by
// configuration position. It returns as soon as every agent has finished or
// ctx is done; results arriving after that are discarded.
func (r *Runner) dispatch(ctx context.Context, req agent.Requirement) []outcome {
	var (
		mu       sync.Mutex
		sealed   bool
		outcomes = make([]outcome, len(r.agents))
	)

	var g errgroup.Group
	if r.cfg.Concurrency > 0 {
		g.SetLimit(r.cfg.Concurrency)
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i, a := range r.agents {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				dim := a.Dimension()

				mu.Lock()
				if !sealed {
					r.agentStarted(dim)
				}
				mu.Unlock()

				start := time.Now()
				j, err := a.Evaluate(ctx, req)

				mu.Lock()
				defer mu.Unlock()
				if sealed {
					return nil
				}
				outcomes[i] = outcome{judgment: j, err: err, done: true}
				if err != nil {
					r.agentFailed(dim, err)
				} else {
					r.agentCompleted(dim, j, time.Since(start))
				}
				return nil // best effort: one agent never fails the group
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-finished:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	sealed = true
	return slices.Clone(outcomes)
}

func abandonCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.DeadlineExceeded
}

func (r *Runner) agentStarted(dim string) {
	if r.callbacks != nil && r.callbacks.OnAgentStart != nil {
		r.callbacks.OnAgentStart(dim)
	}
}

func (r *Runner) agentCompleted(dim string, j agent.Judgment, elapsed time.Duration) {
	if r.callbacks != nil && r.callbacks.OnAgentComplete != nil {
		r.callbacks.OnAgentComplete(dim, j, elapsed)
	}
}

func (r *Runner) agentFailed(dim string, err error) {
	if r.callbacks != nil && r.callbacks.OnAgentError != nil {
		r.callbacks.OnAgentError(dim, err)
	}
}
