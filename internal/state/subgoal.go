// Package state defines the task-scoped blackboard (SharedState) and the
// Subgoal type threaded through the agent graph, per spec.md §3.
package state

import "github.com/google/uuid"

// SubgoalStatus is the lifecycle state of a Subgoal.
type SubgoalStatus string

const (
	SubgoalNotStarted SubgoalStatus = "not_started"
	SubgoalRunning    SubgoalStatus = "running"
	SubgoalSuccess    SubgoalStatus = "success"
	SubgoalFailure    SubgoalStatus = "failure"
)

// Subgoal is an atomic planned step with lifecycle status. Exactly one
// Subgoal in a plan may be Running at a time (spec.md §3 invariant b).
type Subgoal struct {
	ID               string
	Description      string
	Status           SubgoalStatus
	CompletionReason string
}

// NewSubgoal constructs a NotStarted subgoal with a fresh id. Ids are stable
// across replans only if explicitly preserved; Planner always generates
// fresh ids (spec.md §3).
func NewSubgoal(description string) Subgoal {
	return Subgoal{
		ID:          uuid.NewString(),
		Description: description,
		Status:      SubgoalNotStarted,
	}
}

// Plan is an ordered sequence of Subgoal.
type Plan []Subgoal

// Current returns the single Running subgoal, or nil if none is running.
func (p Plan) Current() *Subgoal {
	for i := range p {
		if p[i].Status == SubgoalRunning {
			return &p[i]
		}
	}
	return nil
}

// NothingStarted reports whether every subgoal is still NotStarted.
func (p Plan) NothingStarted() bool {
	for _, s := range p {
		if s.Status != SubgoalNotStarted {
			return false
		}
	}
	return true
}

// AllSuccess reports whether every subgoal has Status Success. An empty plan
// is not considered complete.
func (p Plan) AllSuccess() bool {
	if len(p) == 0 {
		return false
	}
	for _, s := range p {
		if s.Status != SubgoalSuccess {
			return false
		}
	}
	return true
}

// AnyFailure reports whether any subgoal has Status Failure.
func (p Plan) AnyFailure() bool {
	for _, s := range p {
		if s.Status == SubgoalFailure {
			return true
		}
	}
	return false
}

// StartNext transitions the first NotStarted subgoal to Running and returns
// the updated plan. If a subgoal is already Running, the plan is returned
// unchanged.
func (p Plan) StartNext() Plan {
	if p.Current() != nil {
		return p
	}
	out := make(Plan, len(p))
	copy(out, p)
	for i := range out {
		if out[i].Status == SubgoalNotStarted {
			out[i].Status = SubgoalRunning
			break
		}
	}
	return out
}

// FailCurrent marks the Running subgoal Failure. No-op if none is running.
func (p Plan) FailCurrent() Plan {
	out := make(Plan, len(p))
	copy(out, p)
	for i := range out {
		if out[i].Status == SubgoalRunning {
			out[i].Status = SubgoalFailure
			break
		}
	}
	return out
}

// CompleteByIDs marks the subgoals whose id is in ids as Success.
func (p Plan) CompleteByIDs(ids []string) Plan {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	out := make(Plan, len(p))
	copy(out, p)
	for i := range out {
		if set[out[i].ID] {
			out[i].Status = SubgoalSuccess
		}
	}
	return out
}

// ByIDs returns the subgoals whose id is in ids, preserving plan order.
func (p Plan) ByIDs(ids []string) []Subgoal {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []Subgoal
	for _, s := range p {
		if set[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
