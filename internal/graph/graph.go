// Package graph implements the agent orchestration graph runtime: a finite
// state machine whose nodes are agent functions over a shared
// internal/state.State, whose edges are conditional routing predicates, and
// whose runtime streams intermediate values, propagates cancellation, and
// enforces a step budget (spec.md §4.1, §9 "Graph runtime vs. coroutines").
// Grounded on the teacher's runtime/agent/stream fan-out-subscriber pattern,
// adapted from a Sink/Event bus to four typed Go channels, and on
// runtime/agent/engine's WorkflowContext shape for the per-step execution
// context, trimmed of Temporal's durable-replay machinery per DESIGN.md.
package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/taskerr"
	"github.com/x7722/mobile-use/internal/telemetry"
)

// Node is a single agent step: it reads State and returns a sanitized Delta
// to commit, or an error. Nodes never mutate State directly (spec.md §9
// "Blackboard with tagged deltas").
type Node func(ctx context.Context, s *state.State) (state.Delta, error)

// Router decides the next node(s) given the current state, implementing the
// graph's conditional routing predicates (spec.md §4.1 "edges are
// conditional routing predicates"). Most nodes route to a single next node;
// Cortex is the one documented exception where both routes may fire in the
// same superstep (spec.md §4.5 "multi-route: both may fire"), so Router
// returns a slice. An empty slice, or a slice containing only End, ends that
// path without enqueuing further work.
type Router func(s *state.State) []string

// End is the sentinel next-node name that terminates a path through the
// graph without enqueuing further work.
const End = ""

// Route1 adapts a single-destination routing predicate to the Router shape,
// for the common case where a node always has exactly one next node.
func Route1(f func(s *state.State) string) Router {
	return func(s *state.State) []string { return []string{f(s)} }
}

// Graph is an immutable node/edge/router registration, compiled once and
// run per task.
type Graph struct {
	Entry   string
	Nodes   map[string]Node
	Routers map[string]Router
}

// Builder incrementally assembles a Graph.
type Builder struct {
	g *Graph
}

// NewBuilder starts a new graph with the given entry node name.
func NewBuilder(entry string) *Builder {
	return &Builder{g: &Graph{
		Entry:   entry,
		Nodes:   map[string]Node{},
		Routers: map[string]Router{},
	}}
}

// AddNode registers a node under name.
func (b *Builder) AddNode(name string, n Node) *Builder {
	b.g.Nodes[name] = n
	return b
}

// AddRouter registers the routing predicate evaluated after name's node runs.
func (b *Builder) AddRouter(name string, r Router) *Builder {
	b.g.Routers[name] = r
	return b
}

// Build finalizes the graph, validating that the entry node exists. Router
// targets are not checked here; a route to an unregistered node fails when
// Run reaches it.
func (b *Builder) Build() (*Graph, error) {
	g := b.g
	if _, ok := g.Nodes[g.Entry]; !ok {
		return nil, fmt.Errorf("graph: entry node %q not registered", g.Entry)
	}
	return g, nil
}

// Channels bundles the four streaming channels a Runtime fans events out to,
// mirroring the teacher's stream.Sink but as plain Go channels per
// SPEC_FULL.md's "four streaming channels are Go channels" decision.
type Channels struct {
	// Values carries a full state snapshot after every committed delta.
	Values chan state.Snapshot
	// Updates carries just the delta that was applied.
	Updates chan state.Delta
	// Messages carries new executor/assistant messages as they're appended.
	Messages chan state.Message
	// Custom carries node-defined side-channel events. No node in this
	// module sends on it.
	Custom chan any
}

// NewChannels allocates buffered channels sized to avoid blocking node
// execution on slow consumers for a handful of steps.
func NewChannels() *Channels {
	return &Channels{
		Values:   make(chan state.Snapshot, 16),
		Updates:  make(chan state.Delta, 16),
		Messages: make(chan state.Message, 16),
		Custom:   make(chan any, 16),
	}
}

func (c *Channels) closeAll() {
	close(c.Values)
	close(c.Updates)
	close(c.Messages)
	close(c.Custom)
}

// Runtime executes a Graph against a State by draining a FIFO work queue of
// pending node executions, grounded on SPEC_FULL.md's "explicit scheduler
// loop over a work queue holding the next node to execute" description. It
// runs until the queue empties, the step budget is exhausted, or ctx is
// cancelled (spec.md §4.1 "enforce a step (recursion) budget" and
// "propagate cancellation"). Nodes still execute strictly one at a time
// (spec.md §5): a multi-route superstep enqueues its destinations in order
// and they run sequentially, never concurrently. The queue additionally
// tracks fork cohorts so a sibling of a path that has already reached End
// is dropped instead of run — see Run's doc comment.
type Runtime struct {
	Graph    *Graph
	Channels *Channels
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
	Tracer   telemetry.Tracer

	mu      sync.Mutex
	stepped int
}

// NewRuntime builds a Runtime for graph, allocating fresh streaming channels.
func NewRuntime(g *Graph, logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) *Runtime {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Runtime{
		Graph:    g,
		Channels: NewChannels(),
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	}
}

// queued is a pending node execution. gen identifies the fork cohort it
// belongs to: 0 means the token is not part of any multi-route fork (the
// common single-path case). Tokens produced by a multi-route Router call
// all share a freshly minted gen, so that if any one of them runs a
// terminal (End) step, the rest of the cohort can be recognized as stale.
type queued struct {
	node string
	gen  int
}

// Run drives the graph to completion. It closes the runtime's streaming
// channels when it returns, so callers must drain them concurrently (e.g.
// via a goroutine reading Channels before calling Run).
//
// A Router returning more than one destination (spec.md §4.5's documented
// Cortex exception) forks the current token into a cohort of siblings that
// all trace back to the same decision point — e.g. Cortex deciding both to
// review completed subgoals and to act on the next one. Convergence is the
// deferred join those forked paths are specified to reach (spec.md §4.1
// Glossary: "runs after all inbound predecessors of the current superstep
// have completed"). The runtime does not try to hold every sibling back
// until they all literally arrive at the same node, since branches can take
// a different number of hops to get there; instead it tracks, per cohort,
// whether any sibling has already routed to End. Once one has, the task is
// decided, and the rest of that cohort's pending work is stale and is
// dropped rather than run — this is what keeps a late-running sibling (e.g.
// an Executor tool call queued one hop behind Orchestrator's path to
// Convergence) from producing a device-side effect after the graph has
// already finished (spec.md §1).
func (r *Runtime) Run(ctx context.Context, s *state.State) error {
	defer r.Channels.closeAll()

	nextGen := 1
	cancelled := map[int]bool{}

	queue := []queued{{node: r.Graph.Entry}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.node == End {
			continue
		}
		if item.gen != 0 && cancelled[item.gen] {
			continue
		}

		if err := ctx.Err(); err != nil {
			return taskerr.New(taskerr.KindCancelled, err)
		}
		if s.RemainingSteps() <= 0 {
			return taskerr.Newf(taskerr.KindBudgetExhausted, "step budget exhausted before node %q", item.node)
		}

		fn, ok := r.Graph.Nodes[item.node]
		if !ok {
			return fmt.Errorf("graph: node %q not registered", item.node)
		}

		ctx, span := r.Tracer.Start(ctx, "graph.node."+item.node)
		delta, err := fn(ctx, s)
		if err != nil {
			span.RecordError(err)
			span.End()
			if !taskerr.Fatal(kindOf(err)) {
				// Local-recoverable errors are fed back into state as a thought
				// rather than aborting the run (spec.md §7 policy).
				s.Apply(state.Sanitize(item.node, state.Delta{AgentsThoughts: []string{err.Error()}}))
			} else {
				return err
			}
		} else {
			s.Apply(delta)
			r.publish(s, delta)
		}
		span.End()

		s.DecrementRemainingSteps()
		r.recordStep()

		router, ok := r.Graph.Routers[item.node]
		if !ok {
			continue
		}
		next := router(s)
		gen := item.gen
		if len(next) > 1 {
			gen = nextGen
			nextGen++
		}
		for _, n := range next {
			if n == End {
				if item.gen != 0 {
					cancelled[item.gen] = true
				}
				continue
			}
			queue = append(queue, queued{node: n, gen: gen})
		}
	}
	return nil
}

func kindOf(err error) taskerr.Kind {
	var te *taskerr.Error
	if e, ok := err.(*taskerr.Error); ok {
		te = e
	}
	if te != nil {
		return te.Kind
	}
	return ""
}

func (r *Runtime) publish(s *state.State, delta state.Delta) {
	select {
	case r.Channels.Updates <- delta:
	default:
	}
	select {
	case r.Channels.Values <- s.Snapshot():
	default:
	}
	for _, m := range delta.ExecutorMessages {
		select {
		case r.Channels.Messages <- m:
		default:
		}
	}
}

func (r *Runtime) recordStep() {
	r.mu.Lock()
	r.stepped++
	r.mu.Unlock()
	r.Metrics.IncCounter("graph.step", 1)
}

// StepsExecuted returns the number of node executions completed so far.
func (r *Runtime) StepsExecuted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepped
}
