// Package cortex implements the Cortex agent node, grounded on
// agents/cortex/cortex.py: it decides the next concrete UI action set from
// the latest device observation, emitting a stringified decisions payload
// for the Executor to consume (spec.md §4.5).
package cortex

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
	"required": ["decisions_reason", "goals_completion_reason"],
	"properties": {
		"decisions": {"type": "string"},
		"decisions_reason": {"type": "string"},
		"goals_completion_reason": {"type": "string"},
		"complete_subgoals_by_ids": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

var promptTemplate = template.Must(template.New("cortex").Parse(`You are deciding the next UI action for a mobile-device automation task.

Current subgoal: {{.Current}}
Focused app: {{.FocusedApp}}
Device date: {{.DeviceDate}}
Screen size: {{.Width}}x{{.Height}}

Recent thoughts:
{{range .Thoughts}}- {{.}}
{{end}}

Decide the next action(s). Leave "decisions" empty if the current subgoal already looks complete and needs review instead of further action.`))

// Node builds the Cortex graph.Node.
func Node(mux *llm.Multiplexer, profile string, logger telemetry.Logger) func(ctx context.Context, s *state.State) (state.Delta, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return func(ctx context.Context, s *state.State) (state.Delta, error) {
		plan := s.SubgoalPlan()
		current := plan.Current()
		currentDesc := "(none)"
		if current != nil {
			currentDesc = current.Description
		}
		focused := "(none)"
		if fa := s.FocusedAppInfo(); fa != nil {
			focused = fa.PackageID
		}
		size := s.ScreenSize()

		var prompt strings.Builder
		if err := promptTemplate.Execute(&prompt, struct {
			Current    string
			FocusedApp string
			DeviceDate string
			Width      int
			Height     int
			Thoughts   []string
		}{
			Current:    currentDesc,
			FocusedApp: focused,
			DeviceDate: s.Snapshot().DeviceDate,
			Width:      size.Width,
			Height:     size.Height,
			Thoughts:   s.AgentsThoughts(),
		}); err != nil {
			return state.Delta{}, fmt.Errorf("cortex: render prompt: %w", err)
		}

		resp, err := mux.Complete(ctx, profile, &llm.Request{
			System:           "You are the decision-making core of an on-device UI agent.",
			Messages:         []llm.Message{{Role: llm.RoleUser, Text: prompt.String()}},
			StructuredSchema: json.RawMessage(schema),
		})
		if err != nil {
			return state.Delta{}, taskerr.New(taskerr.KindLLMFailure, err)
		}

		var decoded struct {
			Decisions             string   `json:"decisions"`
			DecisionsReason       string   `json:"decisions_reason"`
			GoalsCompletionReason string   `json:"goals_completion_reason"`
			CompleteSubgoalsByIDs []string `json:"complete_subgoals_by_ids"`
		}
		if len(resp.StructuredOutput) == 0 {
			return state.Delta{}, taskerr.New(taskerr.KindLLMFailure, fmt.Errorf("cortex: empty structured output"))
		}
		if err := json.Unmarshal(resp.StructuredOutput, &decoded); err != nil {
			return state.Delta{}, taskerr.New(taskerr.KindLLMFailure, err)
		}

		delta := state.Delta{
			CompleteSubgoalsByIDs: decoded.CompleteSubgoalsByIDs,
			AgentsThoughts:        []string{decoded.DecisionsReason},
		}
		if decoded.Decisions != "" {
			delta.StructuredDecisions = &decoded.Decisions
		} else {
			delta.ClearStructuredDecisions = true
		}
		if decoded.GoalsCompletionReason != "" {
			delta.AgentsThoughts = append(delta.AgentsThoughts, decoded.GoalsCompletionReason)
		}

		return state.Sanitize("cortex", delta), nil
	}
}

// Router implements the post-Cortex multi-route predicate (spec.md §4.5):
// both routes may fire in the same superstep, so it returns every route
// that applies.
func Router(s *state.State) []string {
	var routes []string
	decisions := s.StructuredDecisions()
	if len(s.CompleteSubgoalsByIDs()) > 0 || decisions == nil || *decisions == "" {
		routes = append(routes, "review_subgoals")
	}
	if decisions != nil && *decisions != "" {
		routes = append(routes, "continue")
	}
	return routes
}
