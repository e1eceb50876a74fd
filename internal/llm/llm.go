// Package llm defines the provider-agnostic client contract consumed by
// every agent node, grounded on runtime/agent/model's Client/Request/
// Response shape. mobile-use trims the teacher's citation/document parts,
// which have no use in a device-control loop, and adds StructuredSchema
// binding, which the teacher's planner handles at a different layer.
package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/x7722/mobile-use/internal/tools"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is a tool invocation the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult carries the outcome of a previously requested ToolCall back to
// the model on the next turn.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one turn of the conversation sent to or received from a model.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ModelClass selects a model family when Request.Model is empty,
// mirroring the teacher's ModelClass but scoped to what mobile-use's
// Cortex/Planner/Outputter agents need.
type ModelClass string

const (
	ModelClassDefault        ModelClass = "default"
	ModelClassHighReasoning  ModelClass = "high-reasoning"
	ModelClassSmall          ModelClass = "small"
)

// Request is a single model invocation, grounded on model.Request.
type Request struct {
	Model      string
	ModelClass ModelClass
	Messages   []Message
	System     string
	Tools      []tools.Spec
	// StructuredSchema, when set, forces the provider to emit JSON matching
	// this JSON Schema instead of free text (spec.md's "structured-output
	// binding" requirement for Planner/Cortex/Outputter).
	StructuredSchema json.RawMessage
	Temperature      float32
	MaxTokens        int
}

// Response is a single non-streaming model result.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	// StructuredOutput holds the raw JSON payload when Request.StructuredSchema
	// was set and the provider honored it.
	StructuredOutput json.RawMessage
	StopReason       string
	InputTokens      int
	OutputTokens     int
}

// Client is the provider-agnostic model client every adapter implements.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Capabilities reports feature support. sdk.Agent checks it when building a
// task's graph to choose between parallel and serial tool dispatch in
// ExecutorTools.
type Capabilities interface {
	SupportsParallelToolCalls() bool
}

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. Adapters wrap the provider's error with it and do not retry.
var ErrRateLimited = errors.New("llm: rate limited")

// ErrStructuredOutputRequired indicates a provider returned no structured
// output for a request that required one (spec.md §7 "fallback-on-null").
var ErrStructuredOutputRequired = errors.New("llm: structured output required but absent")
