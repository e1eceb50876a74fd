// Package sdk assembles the eight agent nodes, the device controller, and
// the tool layer into a runnable graph and exposes the single-task-owner
// surface a caller drives (spec.md §4.11 "SDK surface"), grounded on
// sdk/agent.py's Agent/TaskConfig and on the teacher's runtime/agent engine
// wiring a compiled graph to a fresh Channels pair per run.
package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/x7722/mobile-use/internal/agents/contextor"
	"github.com/x7722/mobile-use/internal/agents/cortex"
	"github.com/x7722/mobile-use/internal/agents/executor"
	"github.com/x7722/mobile-use/internal/agents/hopper"
	"github.com/x7722/mobile-use/internal/agents/orchestrator"
	"github.com/x7722/mobile-use/internal/agents/outputter"
	"github.com/x7722/mobile-use/internal/agents/planner"
	"github.com/x7722/mobile-use/internal/agents/summarizer"
	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/graph"
	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/session"
	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/task"
	"github.com/x7722/mobile-use/internal/telemetry"
	"github.com/x7722/mobile-use/internal/tools"
	"github.com/x7722/mobile-use/internal/toolexec"
)

const (
	nodePlanner      = "planner"
	nodeOrchestrator = "orchestrator"
	nodeContextor    = "contextor"
	nodeCortex       = "cortex"
	nodeExecutor     = "executor"
	nodeExecTools    = "executor_tools"
	nodeSummarizer   = "summarizer"
	nodeConvergence  = "convergence"
)

// Config wires every dependency an Agent needs to run tasks: one LLM
// multiplexer shared across all profiles, a profile name per agent role
// ("UsingProfile" overrides the planner, orchestrator, cortex and executor
// profiles per task; hopper and outputter always use theirs), the device
// controller and its package lister, and the session store backing the
// single-task-owner discipline (internal/task).
type Config struct {
	Mux *llm.Multiplexer

	PlannerProfile      string
	OrchestratorProfile string
	CortexProfile       string
	ExecutorProfile     string
	HopperProfile       string
	OutputterProfile    string

	Device   device.Controller
	Packages toolexec.PackageLister

	SessionStore    session.Store
	SessionID       string
	DefaultMaxSteps int

	Recorder TraceRecorder

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// TraceRecorder persists per-step snapshots and final output for a task,
// implemented by internal/trace.Recorder. An Agent with a nil Recorder
// simply skips trace recording (spec.md §4.12 is an optional feature, not a
// graph-runtime dependency).
type TraceRecorder interface {
	RecordSnapshot(ctx context.Context, taskID string, snap state.Snapshot)
	RecordMessage(ctx context.Context, taskID string, msg state.Message)
	WriteOutput(taskID string, output string) error
}

// Agent is the stateful SDK surface: one Agent owns at most one in-flight
// task at a time (spec.md §4.8), enforced by its internal/task.Lifecycle.
type Agent struct {
	cfg       Config
	lifecycle *task.Lifecycle
	registry  *tools.Registry
	specs     []tools.Spec
	hopper    *hopper.Agent
	outputter *outputter.Agent
	toolExec  *toolexec.Executor
}

// Init builds an Agent from cfg, compiling the canonical tool registry and
// constructing the Hopper/Outputter utility agents and the tool executor.
func Init(cfg Config) (*Agent, error) {
	if cfg.Mux == nil {
		return nil, fmt.Errorf("sdk: Config.Mux is required")
	}
	if cfg.Device == nil {
		return nil, fmt.Errorf("sdk: Config.Device is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NewNoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NewNoopTracer()
	}
	if cfg.DefaultMaxSteps <= 0 {
		cfg.DefaultMaxSteps = 50
	}

	registry, err := tools.NewRegistry(tools.Catalog())
	if err != nil {
		return nil, fmt.Errorf("sdk: build tool registry: %w", err)
	}

	hop := hopper.New(cfg.Mux, cfg.HopperProfile, cfg.Logger)
	out := outputter.New(cfg.Mux, cfg.OutputterProfile, cfg.Logger)
	toolExec := &toolexec.Executor{Controller: cfg.Device, Packages: cfg.Packages, Resolver: hop}

	return &Agent{
		cfg:       cfg,
		lifecycle: task.NewLifecycle(cfg.SessionID, cfg.SessionStore, cfg.Logger),
		registry:  registry,
		specs:     registry.Specs(),
		hopper:    hop,
		outputter: out,
		toolExec:  toolExec,
	}, nil
}

// TaskRequest describes one task run (spec.md §4.11 TaskRequestBuilder).
type TaskRequest struct {
	Goal              string
	Name              string
	OutputFormat      string
	OutputDescription string
	LockedAppPackage  string
	Profile           string // when non-empty, overrides the planner, orchestrator, cortex and executor profiles (not hopper or outputter)
	MaxSteps          int
	TraceRecording    bool
}

// TaskRequestBuilder fluently assembles a TaskRequest before running it.
type TaskRequestBuilder struct {
	agent *Agent
	req   TaskRequest
}

// NewTask starts building a task request for goal.
func (a *Agent) NewTask(goal string) *TaskRequestBuilder {
	return &TaskRequestBuilder{agent: a, req: TaskRequest{Goal: goal, MaxSteps: a.cfg.DefaultMaxSteps}}
}

func (b *TaskRequestBuilder) WithName(name string) *TaskRequestBuilder { b.req.Name = name; return b }
func (b *TaskRequestBuilder) WithOutputFormat(schema string) *TaskRequestBuilder {
	b.req.OutputFormat = schema
	return b
}
func (b *TaskRequestBuilder) WithOutputDescription(desc string) *TaskRequestBuilder {
	b.req.OutputDescription = desc
	return b
}
func (b *TaskRequestBuilder) WithLockedAppPackage(pkg string) *TaskRequestBuilder {
	b.req.LockedAppPackage = pkg
	return b
}
func (b *TaskRequestBuilder) UsingProfile(profile string) *TaskRequestBuilder {
	b.req.Profile = profile
	return b
}
func (b *TaskRequestBuilder) WithMaxSteps(n int) *TaskRequestBuilder { b.req.MaxSteps = n; return b }
func (b *TaskRequestBuilder) WithTraceRecording(on bool) *TaskRequestBuilder {
	b.req.TraceRecording = on
	return b
}

// Run starts the built task request.
func (b *TaskRequestBuilder) Run(ctx context.Context) (*task.Handle, error) {
	return b.agent.RunTask(ctx, b.req)
}

// RunTask starts req as the Agent's new owned task, cancelling and joining
// whatever task previously held ownership (spec.md §4.8).
func (a *Agent) RunTask(ctx context.Context, req TaskRequest) (*task.Handle, error) {
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = a.cfg.DefaultMaxSteps
	}

	g, err := a.buildGraph(req)
	if err != nil {
		return nil, err
	}

	runner := func(ctx context.Context, taskID, goal string, maxSteps int) (*state.State, error) {
		s := state.New(goal, maxSteps)
		rt := graph.NewRuntime(g, a.cfg.Logger, a.cfg.Metrics, a.cfg.Tracer)

		done := make(chan struct{})
		go a.drain(ctx, taskID, req, rt, done)

		runErr := rt.Run(ctx, s)
		<-done
		return s, runErr
	}

	extract := func(final *state.State) (string, error) {
		return a.outputter.Extract(ctx, final, req.OutputFormat, req.OutputDescription)
	}

	h := a.lifecycle.Start(ctx, req.Goal, maxSteps, runner, extract)
	if a.cfg.Recorder != nil && req.TraceRecording {
		go func() {
			res := h.Wait()
			_ = a.cfg.Recorder.WriteOutput(h.TaskID, res.Output)
		}()
	}
	return h, nil
}

// drain consumes a Runtime's streaming channels until Run closes them,
// optionally forwarding snapshots and messages to the configured
// TraceRecorder (spec.md §4.12).
func (a *Agent) drain(ctx context.Context, taskID string, req TaskRequest, rt *graph.Runtime, done chan struct{}) {
	defer close(done)
	ch := rt.Channels
	for {
		select {
		case snap, ok := <-ch.Values:
			if !ok {
				ch.Values = nil
				break
			}
			if a.cfg.Recorder != nil && req.TraceRecording {
				a.cfg.Recorder.RecordSnapshot(ctx, taskID, snap)
			}
		case _, ok := <-ch.Updates:
			if !ok {
				ch.Updates = nil
			}
		case msg, ok := <-ch.Messages:
			if !ok {
				ch.Messages = nil
				break
			}
			if a.cfg.Recorder != nil && req.TraceRecording {
				a.cfg.Recorder.RecordMessage(ctx, taskID, msg)
			}
		case _, ok := <-ch.Custom:
			if !ok {
				ch.Custom = nil
			}
		}
		if ch.Values == nil && ch.Updates == nil && ch.Messages == nil && ch.Custom == nil {
			return
		}
	}
}

// StopCurrentTask cancels the Agent's in-flight task, if any.
func (a *Agent) StopCurrentTask() {
	if h := a.lifecycle.Current(); h != nil {
		h.Cancel()
	}
}

// Clean cancels and joins the in-flight task, leaving the Agent idle.
func (a *Agent) Clean(ctx context.Context) error {
	if h := a.lifecycle.Current(); h != nil {
		h.Cancel()
		h.Wait()
	}
	return nil
}

func (a *Agent) profile(role, override string) string {
	if override != "" {
		return override
	}
	return role
}

// buildGraph wires the eight agent nodes into the fixed topology described
// by spec.md §4.1-§4.10: Planner -> Orchestrator -(replan|end|continue)->
// {Planner, Convergence, Contextor} -> Cortex -(review_subgoals|continue)->
// {Orchestrator, Executor} -(invoke_tools|skip)-> {ExecutorTools, Summarizer}
// -> Summarizer -> Convergence -(replan|end|continue)-> {Planner, End,
// Contextor}. Convergence is an ordinary routable node, not a special graph
// field, reconciling spec.md's narrative "convergence point" with the
// runtime's uniform node/router model (SPEC_FULL.md Open Question decision).
func (a *Agent) buildGraph(req TaskRequest) (*graph.Graph, error) {
	plannerProfile := a.profile(a.cfg.PlannerProfile, req.Profile)
	orchestratorProfile := a.profile(a.cfg.OrchestratorProfile, req.Profile)
	cortexProfile := a.profile(a.cfg.CortexProfile, req.Profile)
	executorProfile := a.profile(a.cfg.ExecutorProfile, req.Profile)

	toolNames := make([]string, 0, len(a.specs))
	for _, s := range a.specs {
		toolNames = append(toolNames, s.Name)
	}

	parallel := false
	if c, ok := a.cfg.Mux.Profiles[executorProfile]; ok {
		if caps, ok := c.Client.(llm.Capabilities); ok {
			parallel = caps.SupportsParallelToolCalls()
		}
	}

	b := graph.NewBuilder(nodePlanner)

	b.AddNode(nodePlanner, planner.Node(a.cfg.Mux, plannerProfile, toolNames, a.cfg.Logger))
	b.AddRouter(nodePlanner, graph.Route1(func(*state.State) string { return nodeOrchestrator }))

	b.AddNode(nodeOrchestrator, orchestrator.Node(a.cfg.Mux, orchestratorProfile, a.cfg.Logger))
	b.AddRouter(nodeOrchestrator, graph.Route1(func(s *state.State) string {
		switch orchestrator.Router(s) {
		case "replan":
			return nodePlanner
		case "end":
			return nodeConvergence
		default:
			return a.maybeRelaunch(s, req, nodeContextor)
		}
	}))

	b.AddNode(nodeContextor, contextor.Node(a.cfg.Device))
	b.AddRouter(nodeContextor, graph.Route1(func(*state.State) string { return nodeCortex }))

	b.AddNode(nodeCortex, cortex.Node(a.cfg.Mux, cortexProfile, a.cfg.Logger))
	b.AddRouter(nodeCortex, func(s *state.State) []string {
		routes := cortex.Router(s)
		out := make([]string, len(routes))
		for i, r := range routes {
			switch r {
			case "review_subgoals":
				out[i] = nodeOrchestrator
			default:
				out[i] = nodeExecutor
			}
		}
		return out
	})

	b.AddNode(nodeExecutor, executor.ExecutorNode(a.cfg.Mux, executorProfile, a.specs, a.cfg.Logger))
	b.AddRouter(nodeExecutor, graph.Route1(func(s *state.State) string {
		if executor.ExecutorRouter(s) == "invoke_tools" {
			return nodeExecTools
		}
		return nodeSummarizer
	}))

	b.AddNode(nodeExecTools, executor.ToolsNode(a.toolExec, a.registry, parallel, a.cfg.Logger))
	b.AddRouter(nodeExecTools, graph.Route1(func(*state.State) string { return nodeSummarizer }))

	b.AddNode(nodeSummarizer, summarizer.Node(4))
	b.AddRouter(nodeSummarizer, graph.Route1(func(*state.State) string { return nodeConvergence }))

	b.AddNode(nodeConvergence, func(context.Context, *state.State) (state.Delta, error) { return state.Delta{}, nil })
	b.AddRouter(nodeConvergence, graph.Route1(func(s *state.State) string {
		plan := s.SubgoalPlan()
		switch {
		case plan.AnyFailure():
			return nodePlanner
		case len(plan) == 0 || plan.AllSuccess() || plan.Current() == nil:
			return graph.End
		default:
			return a.maybeRelaunch(s, req, nodeContextor)
		}
	}))

	return b.Build()
}

// maybeRelaunch re-launches the locked app if the device drifted away from
// it, per the TaskRequest.LockedAppPackage policy (SPEC_FULL.md DATA MODEL
// supplement on FocusedAppInfo): the check is a thin wrapper at the wiring
// layer rather than a change to Contextor, which stays focused purely on
// observation-fetching.
func (a *Agent) maybeRelaunch(s *state.State, req TaskRequest, next string) string {
	if req.LockedAppPackage == "" {
		return next
	}
	focused := s.FocusedAppInfo()
	if focused != nil && focused.PackageID == req.LockedAppPackage {
		return next
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.cfg.Device.LaunchApp(ctx, req.LockedAppPackage); err != nil {
		a.cfg.Logger.Warn(ctx, "sdk: failed to relaunch locked app", "package", req.LockedAppPackage, "error", err.Error())
	}
	return next
}
