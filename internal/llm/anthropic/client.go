// Package anthropic implements llm.Client on top of the Anthropic Claude
// Messages API, grounded on features/model/anthropic/client.go. It trims the
// teacher's citation/document/thinking-part translation, which mobile-use's
// agent prompts never use, and adds JSON-schema-constrained structured
// output via Anthropic's tool-forcing mechanism.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/tools"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, satisfied by *sdk.MessageService in production and a fake in
// tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the adapter's model resolution and defaults.
type Options struct {
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float64
}

// Client implements llm.Client against Anthropic Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float64
}

var _ llm.Client = (*Client)(nil)

// New builds a Client from an existing Anthropic Messages client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP
// transport, authenticating with apiKey.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, opts)
}

func (c *Client) SupportsParallelToolCalls() bool { return true }

// Complete issues a non-streaming Messages.New request and translates the
// response into llm.Response, binding StructuredSchema via Anthropic's
// tool-forcing mechanism: a synthetic tool named "emit_structured_output"
// whose input schema is the request's schema, with tool_choice forced to it.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(c.effectiveMaxTokens(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params.Messages = msgs

	toolParams, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}
	structuredToolName := ""
	if len(req.StructuredSchema) > 0 {
		var schema any
		if err := json.Unmarshal(req.StructuredSchema, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: decode structured schema: %w", err)
		}
		structuredToolName = "emit_structured_output"
		toolParams = append(toolParams, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        structuredToolName,
				Description: sdk.String("Emit the final structured result for this turn."),
				InputSchema: sdk.ToolInputSchemaParam{ExtraFields: map[string]any{"properties": schema}},
			},
		})
		params.ToolChoice = sdk.ToolChoiceParamOfTool(structuredToolName)
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}
	if t := c.effectiveTemperature(req.Temperature); t > 0 {
		params.Temperature = sdk.Float(t)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translateResponse(msg, structuredToolName)
}

func (c *Client) resolveModelID(req *llm.Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case llm.ModelClassHighReasoning:
		if c.highModel != "" {
			return c.highModel
		}
	case llm.ModelClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func (c *Client) effectiveMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.maxTok > 0 {
		return c.maxTok
	}
	return 4096
}

func (c *Client) effectiveTemperature(requested float32) float64 {
	if requested > 0 {
		return float64(requested)
	}
	return c.temp
}

func encodeMessages(msgs []llm.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleUser:
			blocks := []sdk.ContentBlockParamUnion{}
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			for _, r := range m.ToolResults {
				blocks = append(blocks, sdk.NewToolResultBlock(r.ToolCallID, r.Content, r.IsError))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, sdk.NewUserMessage(blocks...))
		case llm.RoleAssistant:
			blocks := []sdk.ContentBlockParamUnion{}
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						return nil, fmt.Errorf("anthropic: decode tool call args for %q: %w", tc.Name, err)
					}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, sdk.NewAssistantMessage(blocks...))
		}
	}
	return out, nil
}

func encodeTools(specs []tools.Spec) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		var schema any
		if len(s.Schema) > 0 {
			if err := json.Unmarshal(s.Schema, &schema); err != nil {
				return nil, fmt.Errorf("anthropic: decode schema for tool %q: %w", s.Name, err)
			}
		}
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        s.Name,
				Description: sdk.String(s.Description),
				InputSchema: sdk.ToolInputSchemaParam{ExtraFields: map[string]any{"properties": schema}},
			},
		})
	}
	return out, nil
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

func translateResponse(msg *sdk.Message, structuredToolName string) (*llm.Response, error) {
	if msg == nil {
		return nil, errors.New("anthropic: response message is nil")
	}
	resp := &llm.Response{
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			if structuredToolName != "" && block.Name == structuredToolName {
				resp.StructuredOutput = json.RawMessage(block.Input)
				continue
			}
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		}
	}
	if structuredToolName != "" && resp.StructuredOutput == nil {
		return nil, llm.ErrStructuredOutputRequired
	}
	return resp, nil
}
