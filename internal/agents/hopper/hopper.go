// Package hopper implements the Hopper utility agent, grounded on
// agents/hopper/hopper.py: a stateless LLM call that resolves a text
// request against a blob of candidate data and returns the single best
// match (spec.md §4.9). It implements internal/toolexec.AppResolver so
// launch_app/stop_app can resolve a human-readable app name to a package id.
package hopper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/taskerr"
	"github.com/x7722/mobile-use/internal/telemetry"
)

const schema = `{
	"type": "object",
	"required": ["reason", "output"],
	"properties": {
		"reason": {"type": "string"},
		"output": {"type": "string"}
	},
	"additionalProperties": false
}`

var promptTemplate = template.Must(template.New("hopper").Parse(`Find the single best match for the request among the candidates.

Request: {{.Request}}

Candidates:
{{range .Candidates}}- {{.}}
{{end}}

Respond with the best matching candidate verbatim in "output", or an empty string if none match.`))

// Agent resolves a text request against a candidate set via an LLM call.
type Agent struct {
	Mux     *llm.Multiplexer
	Profile string
	Logger  telemetry.Logger
}

// New builds a Hopper Agent.
func New(mux *llm.Multiplexer, profile string, logger telemetry.Logger) *Agent {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Agent{Mux: mux, Profile: profile, Logger: logger}
}

// Resolve returns the best match among candidates for request, or an error
// if the model found none.
func (a *Agent) Resolve(ctx context.Context, request string, candidates []string) (string, error) {
	var prompt strings.Builder
	if err := promptTemplate.Execute(&prompt, struct {
		Request    string
		Candidates []string
	}{Request: request, Candidates: candidates}); err != nil {
		return "", fmt.Errorf("hopper: render prompt: %w", err)
	}

	resp, err := a.Mux.Complete(ctx, a.Profile, &llm.Request{
		System:           "You match a natural-language request to the single best candidate from a list.",
		Messages:         []llm.Message{{Role: llm.RoleUser, Text: prompt.String()}},
		StructuredSchema: json.RawMessage(schema),
	})
	if err != nil {
		return "", taskerr.New(taskerr.KindLLMFailure, err)
	}

	var decoded struct {
		Reason string `json:"reason"`
		Output string `json:"output"`
	}
	if len(resp.StructuredOutput) == 0 {
		return "", taskerr.Newf(taskerr.KindLLMFailure, "hopper: empty structured output")
	}
	if err := json.Unmarshal(resp.StructuredOutput, &decoded); err != nil {
		return "", taskerr.New(taskerr.KindLLMFailure, err)
	}
	if decoded.Output == "" {
		return "", fmt.Errorf("hopper: no match for %q", request)
	}
	return decoded.Output, nil
}

// ResolvePackage implements internal/toolexec.AppResolver.
func (a *Agent) ResolvePackage(ctx context.Context, appName string, installed []string) (string, error) {
	return a.Resolve(ctx, appName, installed)
}
