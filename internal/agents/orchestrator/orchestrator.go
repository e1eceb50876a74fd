// Package orchestrator implements the Orchestrator agent node, grounded on
// agents/orchestrator/orchestrator.py's five-step algorithm (spec.md §4.3):
// advance the plan, consult the LLM on completion when subgoals are marked
// complete, and always clear complete_subgoals_by_ids on exit.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/taskerr"
	"github.com/x7722/mobile-use/internal/telemetry"
)

const schema = `{
	"type": "object",
	"required": ["needs_replaning", "reason", "completed_subgoal_ids"],
	"properties": {
		"needs_replaning": {"type": "boolean"},
		"reason": {"type": "string"},
		"completed_subgoal_ids": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

var promptTemplate = template.Must(template.New("orchestrator").Parse(`You are reviewing subgoal progress for a mobile-device automation task.

Goal: {{.Goal}}
Currently running subgoal: {{.Current}}
Subgoals reported complete this step: {{.Completed}}

Recent thoughts:
{{range .Thoughts}}- {{.}}
{{end}}

Decide whether the plan needs replanning (the running subgoal cannot succeed as stated) or which of the reported subgoal ids are genuinely complete.`))

// Node builds the Orchestrator graph.Node.
func Node(mux *llm.Multiplexer, profile string, logger telemetry.Logger) func(ctx context.Context, s *state.State) (state.Delta, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return func(ctx context.Context, s *state.State) (state.Delta, error) {
		plan := s.SubgoalPlan()

		// Step 1: nothing started yet, advance the first NotStarted subgoal.
		if plan.NothingStarted() {
			advanced := plan.StartNext()
			cur := advanced.Current()
			thought := "Starting subgoal: (none)"
			if cur != nil {
				thought = "Starting subgoal: " + cur.Description
			}
			return state.Sanitize("orchestrator", state.Delta{
				SubgoalPlan:           &advanced,
				AgentsThoughts:        []string{thought},
				ClearCompleteSubgoals: true,
			}), nil
		}

		reported := s.CompleteSubgoalsByIDs()

		// Step 2: nothing reported complete this step, no-op continue.
		if len(reported) == 0 {
			return state.Sanitize("orchestrator", state.Delta{ClearCompleteSubgoals: true}), nil
		}

		// Step 3: consult the LLM on whether the reported completion is real
		// or whether the plan needs replanning.
		current := plan.Current()
		currentDesc := "(none)"
		if current != nil {
			currentDesc = current.Description
		}

		var prompt strings.Builder
		if err := promptTemplate.Execute(&prompt, struct {
			Goal      string
			Current   string
			Completed string
			Thoughts  []string
		}{
			Goal:      s.InitialGoal(),
			Current:   currentDesc,
			Completed: strings.Join(reported, ", "),
			Thoughts:  s.AgentsThoughts(),
		}); err != nil {
			return state.Delta{}, fmt.Errorf("orchestrator: render prompt: %w", err)
		}

		resp, err := mux.Complete(ctx, profile, &llm.Request{
			System:           "You are a meticulous progress reviewer for an on-device UI agent.",
			Messages:         []llm.Message{{Role: llm.RoleUser, Text: prompt.String()}},
			StructuredSchema: json.RawMessage(schema),
		})
		if err != nil {
			return state.Delta{}, taskerr.New(taskerr.KindLLMFailure, err)
		}

		var decoded struct {
			NeedsReplaning      bool     `json:"needs_replaning"`
			Reason              string   `json:"reason"`
			CompletedSubgoalIDs []string `json:"completed_subgoal_ids"`
		}
		if len(resp.StructuredOutput) == 0 {
			return state.Delta{}, taskerr.New(taskerr.KindLLMFailure, fmt.Errorf("orchestrator: empty structured output"))
		}
		if err := json.Unmarshal(resp.StructuredOutput, &decoded); err != nil {
			return state.Delta{}, taskerr.New(taskerr.KindLLMFailure, err)
		}

		// Step 3 continued: replan requested.
		if decoded.NeedsReplaning {
			failed := plan.FailCurrent()
			return state.Sanitize("orchestrator", state.Delta{
				SubgoalPlan:           &failed,
				AgentsThoughts:        []string{decoded.Reason},
				ClearCompleteSubgoals: true,
			}), nil
		}

		// Step 4: mark the reported ids Success.
		updated := plan.CompleteByIDs(decoded.CompletedSubgoalIDs)

		// Step 5/6: advance if the previously-running subgoal itself completed.
		stillRunning := current != nil && !contains(decoded.CompletedSubgoalIDs, current.ID)
		if stillRunning {
			return state.Sanitize("orchestrator", state.Delta{
				SubgoalPlan:           &updated,
				ClearCompleteSubgoals: true,
			}), nil
		}

		if updated.AllSuccess() {
			return state.Sanitize("orchestrator", state.Delta{
				SubgoalPlan:           &updated,
				AgentsThoughts:        []string{"All subgoals complete."},
				ClearCompleteSubgoals: true,
			}), nil
		}

		advanced := updated.StartNext()
		return state.Sanitize("orchestrator", state.Delta{
			SubgoalPlan:           &advanced,
			ClearCompleteSubgoals: true,
		}), nil
	}
}

// Router implements the post-Orchestrator routing predicate (spec.md §4.3):
// replan if any subgoal failed, end if all succeeded or nothing is running,
// else continue.
func Router(s *state.State) string {
	plan := s.SubgoalPlan()
	switch {
	case plan.AnyFailure():
		return "replan"
	case plan.AllSuccess():
		return "end"
	case plan.Current() == nil:
		return "end"
	default:
		return "continue"
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
