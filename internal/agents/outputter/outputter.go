// Package outputter implements the Outputter agent, grounded on
// sdk/agent.py's _extract_output / OutputConfig.needs_structured_format:
// when a task declares an output_format or output_description, this agent
// reads the final state and emits the declared value; otherwise the task's
// output is the last appended agent thought (spec.md §4.8 "Output
// extraction").
package outputter

import (
	"context"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/telemetry"
)

var promptTemplate = template.Must(template.New("outputter").Parse(`Produce the final answer for this completed task.

Goal: {{.Goal}}
{{if .OutputDescription}}Output instructions: {{.OutputDescription}}{{end}}

Recent thoughts:
{{range .Thoughts}}- {{.}}
{{end}}

Respond with a JSON object matching the required schema.`))

// Agent extracts a task's declared output from its terminal state.
type Agent struct {
	Mux     *llm.Multiplexer
	Profile string
	Logger  telemetry.Logger
}

// New builds an Outputter Agent.
func New(mux *llm.Multiplexer, profile string, logger telemetry.Logger) *Agent {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Agent{Mux: mux, Profile: profile, Logger: logger}
}

// Extract returns the final state's output string. If outputFormat is
// non-empty, the response is validated as JSON matching it; a validation
// failure logs and returns an empty output rather than failing the task
// (spec.md §4.8: "a declared output_format that fails validation causes a
// null output and a logged error, not a task failure").
func (a *Agent) Extract(ctx context.Context, final *state.State, outputFormat, outputDescription string) (string, error) {
	if outputFormat == "" && outputDescription == "" {
		return lastThought(final), nil
	}

	var prompt strings.Builder
	if err := promptTemplate.Execute(&prompt, struct {
		Goal              string
		OutputDescription string
		Thoughts          []string
	}{
		Goal:              final.InitialGoal(),
		OutputDescription: outputDescription,
		Thoughts:          final.AgentsThoughts(),
	}); err != nil {
		a.Logger.Error(ctx, "outputter: render prompt failed", "error", err.Error())
		return "", nil
	}

	schema := json.RawMessage(outputFormat)
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object","properties":{"value":{"type":"string"}},"required":["value"]}`)
	}

	resp, err := a.Mux.Complete(ctx, a.Profile, &llm.Request{
		System:           "You produce the final declared output for a completed device-automation task.",
		Messages:         []llm.Message{{Role: llm.RoleUser, Text: prompt.String()}},
		StructuredSchema: schema,
	})
	if err != nil {
		a.Logger.Error(ctx, "outputter: llm call failed", "error", err.Error())
		return "", nil
	}
	if len(resp.StructuredOutput) == 0 {
		a.Logger.Error(ctx, "outputter: empty structured output")
		return "", nil
	}
	if outputFormat != "" {
		if err := validateAgainstSchema(outputFormat, resp.StructuredOutput); err != nil {
			a.Logger.Error(ctx, "outputter: output failed validation", "error", err.Error())
			return "", nil
		}
	}
	return string(resp.StructuredOutput), nil
}

func validateAgainstSchema(rawSchema string, payload []byte) error {
	var schemaDoc, payloadDoc any
	if err := json.Unmarshal([]byte(rawSchema), &schemaDoc); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, &payloadDoc); err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	const url = "mem://outputter/declared-format.json"
	if err := compiler.AddResource(url, schemaDoc); err != nil {
		return err
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return err
	}
	return schema.Validate(payloadDoc)
}

func lastThought(final *state.State) string {
	thoughts := final.AgentsThoughts()
	if len(thoughts) == 0 {
		return ""
	}
	return thoughts[len(thoughts)-1]
}
