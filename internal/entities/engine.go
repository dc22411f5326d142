package entities

import (
	"io"
	"log/slog"
	"time"

	"github.com/gbproject/normgraph/internal/schema"
)

// DefaultMaxDepth is the default ceiling on entity nesting depth.
// Depth counts entity occurrences on the path from the root, so a scene is
// depth 1, its actor depth 2, and an event in the actor's script depth 3.
const DefaultMaxDepth = 256

// Operation names an engine call for observers.
type Operation string

const (
	OpNormalize   Operation = "normalize"
	OpDenormalize Operation = "denormalize"
)

// Observer receives one notification per Normalize/Denormalize call.
// tables is nil when the call failed.
type Observer interface {
	Observe(op Operation, tables Tables, err error, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) Observe(Operation, Tables, error, time.Duration) {}

// Clock supplies the time used to measure call durations.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Engine normalizes and denormalizes documents against one schema graph.
//
// An Engine holds only the immutable graph and its options; every call
// keeps its working state in a per-call walker. One Engine may therefore
// serve concurrent calls, provided callers do not mutate the documents or
// tables they pass while a call is running.
type Engine struct {
	graph            *schema.Graph
	maxDepth         int
	assignMissingIDs bool
	logger           *slog.Logger
	observer         Observer
	clock            Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the nesting depth ceiling.
//
// Default: 256 (DefaultMaxDepth). Values below 1 keep the default.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithAssignMissingIDs makes normalization derive an id for occurrences
// that lack one instead of failing with MISSING_IDENTIFIER.
func WithAssignMissingIDs(assign bool) Option {
	return func(e *Engine) {
		e.assignMissingIDs = assign
	}
}

// WithLogger sets the logger. Calls log at Debug level only.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver sets the observer notified after every call.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock sets the clock used to time calls. Tests use it to get
// deterministic durations.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates an Engine for g. A nil graph selects schema.Project().
func New(g *schema.Graph, opts ...Option) *Engine {
	if g == nil {
		g = schema.Project()
	}
	e := &Engine{
		graph:    g,
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: noopObserver{},
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the schema graph the engine walks.
func (e *Engine) Graph() *schema.Graph {
	return e.graph
}

// MaxDepth returns the nesting depth ceiling.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

func (e *Engine) finish(op Operation, tables Tables, err error, start time.Time) {
	elapsed := e.clock.Now().Sub(start)
	if err != nil {
		e.logger.Debug(string(op)+" failed", "code", string(CodeOf(err)), "error", err, "elapsed", elapsed)
		e.observer.Observe(op, nil, err, elapsed)
		return
	}
	e.logger.Debug(string(op)+" complete", "schema", e.graph.Version(), "elapsed", elapsed)
	e.observer.Observe(op, tables, nil, elapsed)
}
