package state

import (
	"sync"

	"github.com/x7722/mobile-use/internal/hierarchy"
)

// FocusedAppInfo identifies the foreground app. ActivityName is Android-only
// (supplemental to the distilled spec; see SPEC_FULL.md §3).
type FocusedAppInfo struct {
	PackageID    string
	ActivityName string
}

// ScreenSize is the device's reported screen dimensions in pixels.
type ScreenSize struct {
	Width, Height int
}

// Delta is a sanitized set of field updates returned by a node, per
// spec.md's Glossary: "StateDelta. A sanitized set of field updates
// returned by a node." Nodes never mutate State directly; the runtime
// commits deltas after sanitizing them (spec.md §9 "Blackboard with tagged
// deltas").
type Delta struct {
	Agent string

	InitialGoal *string // rejected if State.InitialGoal already set

	SubgoalPlan *Plan // replace

	LatestUIHierarchy []*hierarchy.Element // replace
	LatestScreenshot  *string              // replace, base64
	FocusedAppInfo    *FocusedAppInfo      // replace
	DeviceDate        *string              // replace
	ScreenSize        *ScreenSize          // replace

	StructuredDecisions      *string  // replace; set ClearStructuredDecisions to clear
	ClearStructuredDecisions bool     // explicit clear, since StructuredDecisions is nullable
	CompleteSubgoalsByIDs    []string // replace
	ClearCompleteSubgoals    bool     // explicit clear (Orchestrator exit, spec.md §4.3 invariant)

	AgentsThoughts    []string  // append
	ExecutorMessages  []Message // append

	CortexLastThought *string // replace
}

// State is the task-scoped blackboard (spec.md §3 "SharedState"). All reads
// happen through accessor methods; all writes happen through Apply, which
// enforces the per-field merge rules and invariants.
type State struct {
	mu sync.RWMutex

	initialGoal string
	initialSet  bool

	subgoalPlan Plan

	latestUIHierarchy []*hierarchy.Element
	latestScreenshot  string
	focusedAppInfo    *FocusedAppInfo
	deviceDate        string
	screenSize        ScreenSize

	structuredDecisions   *string
	completeSubgoalsByIDs []string

	agentsThoughts   []string
	executorMessages []Message

	cortexLastThought *string

	remainingSteps int

	// writeLog records the originating agent for every applied delta, newest
	// last, to support the sanitizer audit trail (spec.md §3 invariant d).
	writeLog []WriteRecord
}

// WriteRecord audits a single applied Delta.
type WriteRecord struct {
	Agent  string
	Fields []string
}

// New constructs a State for a fresh task with the given goal and step
// budget.
func New(initialGoal string, remainingSteps int) *State {
	return &State{
		initialGoal:    initialGoal,
		initialSet:     true,
		remainingSteps: remainingSteps,
	}
}

// Snapshot is an immutable point-in-time view of State, returned by
// State.Snapshot for streaming to callers (spec.md §4.1 "values" channel).
type Snapshot struct {
	InitialGoal           string
	SubgoalPlan           Plan
	LatestUIHierarchy     []*hierarchy.Element
	LatestScreenshot      string
	FocusedAppInfo        *FocusedAppInfo
	DeviceDate            string
	ScreenSize            ScreenSize
	StructuredDecisions   *string
	CompleteSubgoalsByIDs []string
	AgentsThoughts        []string
	ExecutorMessages      []Message
	CortexLastThought     *string
	RemainingSteps        int
}

// Snapshot returns a deep-enough copy of the current state for safe
// streaming outside the write lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		InitialGoal:           s.initialGoal,
		SubgoalPlan:           append(Plan(nil), s.subgoalPlan...),
		LatestUIHierarchy:     s.latestUIHierarchy,
		LatestScreenshot:      s.latestScreenshot,
		FocusedAppInfo:        s.focusedAppInfo,
		DeviceDate:            s.deviceDate,
		ScreenSize:            s.screenSize,
		StructuredDecisions:   s.structuredDecisions,
		CompleteSubgoalsByIDs: append([]string(nil), s.completeSubgoalsByIDs...),
		AgentsThoughts:        append([]string(nil), s.agentsThoughts...),
		ExecutorMessages:      append([]Message(nil), s.executorMessages...),
		CortexLastThought:     s.cortexLastThought,
		RemainingSteps:        s.remainingSteps,
	}
}

// Accessors used by agent nodes to read the current state when building a
// Delta. Each takes a read lock independently; nodes run single-threaded
// per task (spec.md §5) so this is for safety against concurrent streaming
// readers, not concurrent writers.

func (s *State) InitialGoal() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.initialGoal }

func (s *State) SubgoalPlan() Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(Plan(nil), s.subgoalPlan...)
}

func (s *State) LatestUIHierarchy() []*hierarchy.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestUIHierarchy
}

func (s *State) FocusedAppInfo() *FocusedAppInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focusedAppInfo
}

func (s *State) ScreenSize() ScreenSize { s.mu.RLock(); defer s.mu.RUnlock(); return s.screenSize }

func (s *State) StructuredDecisions() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.structuredDecisions
}

func (s *State) CompleteSubgoalsByIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.completeSubgoalsByIDs...)
}

func (s *State) AgentsThoughts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.agentsThoughts...)
}

func (s *State) ExecutorMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.executorMessages...)
}

func (s *State) CortexLastThought() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cortexLastThought
}

func (s *State) RemainingSteps() int { s.mu.RLock(); defer s.mu.RUnlock(); return s.remainingSteps }

func (s *State) WriteLog() []WriteRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]WriteRecord(nil), s.writeLog...)
}

// Apply commits a sanitized Delta to the state, enforcing the merge rules of
// spec.md §3: replace-on-write fields overwrite, append-on-write fields
// accumulate, InitialGoal is immutable once set, and RemainingSteps never
// increases (invariant a). Unknown/zero fields in the delta are no-ops, so
// callers only need to populate what they changed.
func (s *State) Apply(d Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fields []string

	if d.InitialGoal != nil {
		if !s.initialSet {
			s.initialGoal = *d.InitialGoal
			s.initialSet = true
			fields = append(fields, "initial_goal")
		}
		// Silently reject changes to an already-set initial_goal (spec.md §3).
	}
	if d.SubgoalPlan != nil {
		s.subgoalPlan = append(Plan(nil), (*d.SubgoalPlan)...)
		fields = append(fields, "subgoal_plan")
	}
	if d.LatestUIHierarchy != nil {
		s.latestUIHierarchy = d.LatestUIHierarchy
		fields = append(fields, "latest_ui_hierarchy")
	}
	if d.LatestScreenshot != nil {
		s.latestScreenshot = *d.LatestScreenshot
		fields = append(fields, "latest_screenshot")
	}
	if d.FocusedAppInfo != nil {
		s.focusedAppInfo = d.FocusedAppInfo
		fields = append(fields, "focused_app_info")
	}
	if d.DeviceDate != nil {
		s.deviceDate = *d.DeviceDate
		fields = append(fields, "device_date")
	}
	if d.ScreenSize != nil {
		s.screenSize = *d.ScreenSize
		fields = append(fields, "screen_size")
	}
	if d.ClearStructuredDecisions {
		s.structuredDecisions = nil
		fields = append(fields, "structured_decisions")
	} else if d.StructuredDecisions != nil {
		s.structuredDecisions = d.StructuredDecisions
		fields = append(fields, "structured_decisions")
	}
	if d.ClearCompleteSubgoals {
		s.completeSubgoalsByIDs = nil
		fields = append(fields, "complete_subgoals_by_ids")
	} else if d.CompleteSubgoalsByIDs != nil {
		s.completeSubgoalsByIDs = append([]string(nil), d.CompleteSubgoalsByIDs...)
		fields = append(fields, "complete_subgoals_by_ids")
	}
	if len(d.AgentsThoughts) > 0 {
		s.agentsThoughts = append(s.agentsThoughts, d.AgentsThoughts...)
		fields = append(fields, "agents_thoughts")
	}
	if len(d.ExecutorMessages) > 0 {
		s.executorMessages = append(s.executorMessages, d.ExecutorMessages...)
		fields = append(fields, "executor_messages")
	}
	if d.CortexLastThought != nil {
		s.cortexLastThought = d.CortexLastThought
		fields = append(fields, "cortex_last_thought")
	}

	if len(fields) > 0 {
		s.writeLog = append(s.writeLog, WriteRecord{Agent: d.Agent, Fields: fields})
	}
}

// DecrementRemainingSteps reduces the step budget by one. Only the runtime
// calls this (spec.md §3: "remaining_steps: ... set by runtime"), never an
// agent node via Delta.
func (s *State) DecrementRemainingSteps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remainingSteps > 0 {
		s.remainingSteps--
	}
	return s.remainingSteps
}

// SetRemainingSteps sets the step budget explicitly. A non-zero budget is
// only ever lowered, preserving invariant (a); a zero budget is treated as
// unset and takes n.
func (s *State) SetRemainingSteps(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remainingSteps == 0 || n < s.remainingSteps {
		s.remainingSteps = n
	}
}
