// Package planner implements the Planner agent node, grounded on
// agents/planner/planner.py: it chooses between a first-run "plan" and a
// "replan" mode and renders an ordered subgoal list from the model's
// structured output (spec.md §4.2).
package planner

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
	"required": ["subgoals"],
	"properties": {
		"subgoals": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["description"],
				"properties": {"description": {"type": "string", "minLength": 1}},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

var promptTemplate = template.Must(template.New("planner").Parse(`You are the planning agent for a mobile-device automation system.

Goal: {{.Goal}}

{{if .Replan}}The previous plan failed. Reason the failure happened and produce a corrected ordered list of subgoals that will achieve the goal.{{else}}Produce an ordered list of subgoals that will achieve the goal.{{end}}

Available device tools: {{.Tools}}

Recent thoughts:
{{range .Thoughts}}- {{.}}
{{end}}

Respond with a JSON object matching the required schema: an ordered "subgoals" array of {"description"} entries.`))

// Node builds the Planner graph.Node. toolNames lists the tool names
// advertised to the model for context only (Planner never invokes tools
// itself).
func Node(mux *llm.Multiplexer, profile string, toolNames []string, logger telemetry.Logger) func(ctx context.Context, s *state.State) (state.Delta, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return func(ctx context.Context, s *state.State) (state.Delta, error) {
		plan := s.SubgoalPlan()
		replan := len(plan) > 0 && plan.AnyFailure()

		var prompt strings.Builder
		if err := promptTemplate.Execute(&prompt, struct {
			Goal     string
			Replan   bool
			Tools    string
			Thoughts []string
		}{
			Goal:     s.InitialGoal(),
			Replan:   replan,
			Tools:    strings.Join(toolNames, ", "),
			Thoughts: s.AgentsThoughts(),
		}); err != nil {
			return state.Delta{}, fmt.Errorf("planner: render prompt: %w", err)
		}

		resp, err := mux.Complete(ctx, profile, &llm.Request{
			System:           "You are a careful task planner for an on-device UI agent.",
			Messages:         []llm.Message{{Role: llm.RoleUser, Text: prompt.String()}},
			StructuredSchema: json.RawMessage(schema),
		})
		if err != nil {
			return state.Delta{}, taskerr.New(taskerr.KindPlanningError, err)
		}

		var decoded struct {
			Subgoals []struct {
				Description string `json:"description"`
			} `json:"subgoals"`
		}
		if len(resp.StructuredOutput) == 0 {
			return state.Delta{}, taskerr.Newf(taskerr.KindPlanningError, "planner: empty structured output")
		}
		if err := json.Unmarshal(resp.StructuredOutput, &decoded); err != nil || len(decoded.Subgoals) == 0 {
			return state.Delta{}, taskerr.Newf(taskerr.KindPlanningError, "planner: malformed plan: %v", err)
		}

		newPlan := make(state.Plan, 0, len(decoded.Subgoals))
		for _, sg := range decoded.Subgoals {
			desc := strings.TrimSpace(sg.Description)
			if desc == "" {
				continue
			}
			newPlan = append(newPlan, state.NewSubgoal(desc))
		}
		if len(newPlan) == 0 {
			return state.Delta{}, taskerr.Newf(taskerr.KindPlanningError, "planner: plan contained no usable subgoals")
		}

		mode := "Planned"
		if replan {
			mode = "Replanned"
		}
		logger.Info(ctx, "planner: produced plan", "mode", mode, "subgoals", len(newPlan))

		return state.Sanitize("planner", state.Delta{
			SubgoalPlan:    &newPlan,
			AgentsThoughts: []string{fmt.Sprintf("%s %d subgoal(s) for: %s", mode, len(newPlan), s.InitialGoal())},
		}), nil
	}
}
