package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/observability/metrics"
)

// End is the terminal routing target. Routers return it to finish a run;
// nodes without an outgoing edge or router terminate implicitly.
const End = "__end__"

// DefaultMaxSteps bounds the number of stage executions per run. The graphs
// in this codebase are short; anything beyond this is a wiring loop.
const DefaultMaxSteps = 25

// LoopError reports a run that exhausted its step budget, which means the
// graph routed in a cycle.
type LoopError struct {
	Workflow string
	Steps    int
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("workflow %q exceeded %d steps without terminating", e.Workflow, e.Steps)
}

// node is one registered stage.
type node struct {
	name   string
	policy Policy
}

// NodeOption configures a node at registration time.
type NodeOption func(*node)

// WithFailurePolicy sets how the run reacts when this node fails.
func WithFailurePolicy(policy Policy) NodeOption {
	return func(n *node) {
		n.policy = policy
	}
}

// Graph is a named directed graph of stages, generic over the state type the
// stages operate on. Build it once, validate it, then run it any number of
// times; each run gets its own state value.
type Graph[S State] struct {
	name      string
	nodes     map[string]*node
	fns       map[string]func(ctx context.Context, state S) error
	edges     map[string]string
	routers   map[string]func(state S) string
	entry     string
	buildErrs []error
}

// NewGraph creates an empty graph. The name identifies the workflow in logs,
// metrics and errors.
func NewGraph[S State](name string) *Graph[S] {
	return &Graph[S]{
		name:    name,
		nodes:   make(map[string]*node),
		fns:     make(map[string]func(ctx context.Context, state S) error),
		edges:   make(map[string]string),
		routers: make(map[string]func(state S) string),
	}
}

// Name returns the workflow name.
func (g *Graph[S]) Name() string {
	return g.name
}

// AddNode registers a stage. Failures use PolicyContinue unless overridden
// with WithFailurePolicy.
func (g *Graph[S]) AddNode(name string, fn func(ctx context.Context, state S) error, opts ...NodeOption) *Graph[S] {
	switch {
	case name == "" || name == End:
		g.buildErrs = append(g.buildErrs, fmt.Errorf("invalid node name %q", name))
		return g
	case fn == nil:
		g.buildErrs = append(g.buildErrs, fmt.Errorf("node %q has no function", name))
		return g
	}
	if _, exists := g.nodes[name]; exists {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("node %q registered twice", name))
		return g
	}

	n := &node{name: name, policy: PolicyContinue}
	for _, opt := range opts {
		opt(n)
	}
	g.nodes[name] = n
	g.fns[name] = fn
	return g
}

// AddEdge wires a static successor. Use End as the target to terminate.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = to
	return g
}

// AddRouter wires a routing function evaluated after the node runs. The
// router inspects the state and names the next node, or End.
func (g *Graph[S]) AddRouter(from string, route func(state S) string) *Graph[S] {
	if route == nil {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("node %q has a nil router", from))
		return g
	}
	g.routers[from] = route
	return g
}

// SetEntry names the node every run starts at.
func (g *Graph[S]) SetEntry(name string) *Graph[S] {
	g.entry = name
	return g
}

// Validate checks the graph wiring: an entry must be set and registered,
// every edge and router must start at a registered node, static edge targets
// must be registered or End, and no node may carry both an edge and a
// router. Runs call this implicitly.
func (g *Graph[S]) Validate() error {
	var problems []error
	problems = append(problems, g.buildErrs...)

	switch {
	case g.entry == "":
		problems = append(problems, fmt.Errorf("no entry node set"))
	default:
		if _, ok := g.nodes[g.entry]; !ok {
			problems = append(problems, fmt.Errorf("entry node %q not registered", g.entry))
		}
	}

	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			problems = append(problems, fmt.Errorf("edge from unregistered node %q", from))
		}
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				problems = append(problems, fmt.Errorf("edge %q -> %q targets unregistered node", from, to))
			}
		}
		if _, both := g.routers[from]; both {
			problems = append(problems, fmt.Errorf("node %q has both an edge and a router", from))
		}
	}
	for from := range g.routers {
		if _, ok := g.nodes[from]; !ok {
			problems = append(problems, fmt.Errorf("router from unregistered node %q", from))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(errors.Join(problems...)).
		Component("workflow").
		Category(errors.CategoryWorkflow).
		Context("workflow", g.name).
		Context("operation", "validate").
		Build()
}

// runConfig carries the per-run options.
type runConfig struct {
	maxSteps int
	logger   *slog.Logger
	clock    Clock
	metrics  *metrics.WorkflowMetrics
}

// RunOption configures a single run.
type RunOption func(*runConfig)

// WithMaxSteps overrides the step budget.
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithLogger sets the logger for this run.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the time source, for deterministic tests.
func WithClock(clock Clock) RunOption {
	return func(c *runConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics wires workflow instrumentation for this run.
func WithMetrics(m *metrics.WorkflowMetrics) RunOption {
	return func(c *runConfig) {
		c.metrics = m
	}
}

// Run executes the graph against the state. The returned error reports
// engine faults only: invalid wiring, an exhausted step budget, an unknown
// routing target, or context cancellation. Stage failures are recorded in
// the state's stage log and handled by each node's failure policy; they are
// never returned. Given identical stage behavior, a run visits an identical
// node sequence and produces an identical stage log.
func Run[S State](ctx context.Context, g *Graph[S], state S, opts ...RunOption) error {
	if err := g.Validate(); err != nil {
		return err
	}

	cfg := runConfig{
		maxSteps: DefaultMaxSteps,
		logger:   logging.ForService("workflow"),
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	if cfg.metrics != nil {
		cfg.metrics.IncActiveRuns()
		defer cfg.metrics.DecActiveRuns()
	}
	runStart := cfg.clock.Now()

	current := g.entry
	steps := 0
	for current != End {
		if steps >= cfg.maxSteps {
			loopErr := &LoopError{Workflow: g.name, Steps: cfg.maxSteps}
			cfg.logger.Error("workflow aborted: step budget exhausted",
				"workflow", g.name, "steps", steps)
			finishRun(&cfg, g.name, "failed", runStart, steps)
			return errors.New(loopErr).
				Component("workflow").
				Category(errors.CategoryWorkflow).
				Context("workflow", g.name).
				Context("steps", cfg.maxSteps).
				Build()
		}

		if err := ctx.Err(); err != nil {
			now := cfg.clock.Now()
			state.MarkFatal()
			state.RecordStage(StageResult{
				Stage:     current,
				Status:    StatusError,
				Error:     err,
				Fatal:     true,
				StartedAt: now,
			})
			cfg.logger.Warn("workflow cancelled",
				"workflow", g.name, "stage", current, "error", err)
			finishRun(&cfg, g.name, "failed", runStart, steps)
			return errors.New(err).
				Component("workflow").
				Category(errors.CategoryCancellation).
				Context("workflow", g.name).
				Context("stage", current).
				Build()
		}

		n := g.nodes[current]
		steps++

		stageStart := cfg.clock.Now()
		err := executeNode(ctx, g.fns[current], state)
		duration := cfg.clock.Now().Sub(stageStart)

		result := StageResult{
			Stage:     current,
			Status:    StatusOK,
			StartedAt: stageStart,
			Duration:  duration,
		}
		if err != nil {
			result.Status = StatusError
			result.Error = err
			result.Fatal = n.policy == PolicyFatal
		}
		state.RecordStage(result)

		if cfg.metrics != nil {
			cfg.metrics.RecordStage(g.name, current, string(result.Status), duration.Seconds())
		}

		if err != nil {
			if cfg.metrics != nil {
				cfg.metrics.RecordStageFailure(g.name, current, n.policy.String())
			}
			if n.policy == PolicyFatal {
				state.MarkFatal()
				cfg.logger.Error("stage failed fatally",
					"workflow", g.name, "stage", current, "error", err)
				finishRun(&cfg, g.name, "failed", runStart, steps)
				return nil
			}
			state.MarkDegraded()
			cfg.logger.Warn("stage failed, continuing",
				"workflow", g.name, "stage", current, "error", err)
		} else {
			cfg.logger.Debug("stage completed",
				"workflow", g.name, "stage", current, "duration", duration)
		}

		// Routing runs strictly after the node so routers see its effects.
		next, err := g.route(current, state)
		if err != nil {
			finishRun(&cfg, g.name, "failed", runStart, steps)
			return err
		}
		current = next
	}

	status := "completed"
	if state.Degraded() {
		status = "degraded"
	}
	cfg.logger.Info("workflow finished",
		"workflow", g.name, "status", status, "steps", steps)
	finishRun(&cfg, g.name, status, runStart, steps)
	return nil
}

// route resolves the successor of a node: router first, then static edge,
// then implicit termination.
func (g *Graph[S]) route(current string, state S) (string, error) {
	if router, ok := g.routers[current]; ok {
		target := router(state)
		if target == End {
			return End, nil
		}
		if _, known := g.nodes[target]; !known {
			return "", errors.Newf("router on %q returned unknown target %q", current, target).
				Component("workflow").
				Category(errors.CategoryWorkflow).
				Context("workflow", g.name).
				Context("stage", current).
				Context("target", target).
				Build()
		}
		return target, nil
	}
	if to, ok := g.edges[current]; ok {
		return to, nil
	}
	return End, nil
}

// executeNode runs a stage function and converts panics into stage errors so
// a misbehaving stage cannot take down the engine.
func executeNode[S State](ctx context.Context, fn func(ctx context.Context, state S) error, state S) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("stage panicked: %v", r).
				Component("workflow").
				Category(errors.CategoryWorkflow).
				Build()
		}
	}()
	return fn(ctx, state)
}

// finishRun records run-level metrics.
func finishRun(cfg *runConfig, workflow, status string, start time.Time, steps int) {
	if cfg.metrics == nil {
		return
	}
	cfg.metrics.RecordRun(workflow, status, cfg.clock.Now().Sub(start).Seconds(), steps)
}
