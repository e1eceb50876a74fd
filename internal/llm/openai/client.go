// Package openai implements llm.Client on top of the OpenAI Chat Completions
// API via github.com/sashabaranov/go-openai, grounded on
// features/model/openai/client.go.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/tools"
)

// ChatClient captures the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	Client       ChatClient
	DefaultModel string
}

// Client implements llm.Client via the OpenAI Chat Completions API.
type Client struct {
	chat  ChatClient
	model string
}

var _ llm.Client = (*Client)(nil)

// New builds an OpenAI-backed client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai: client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: opts.Client, model: modelID}, nil
}

// NewFromAPIKey constructs a Client using the default go-openai HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	return New(Options{Client: openai.NewClient(apiKey), DefaultModel: defaultModel})
}

// SupportsParallelToolCalls reports false: the Chat Completions API serializes
// tool_calls into a single assistant turn, but mobile-use's Executor always
// dispatches them one at a time for this adapter to keep device actions
// observably ordered (SPEC_FULL.md "parallel tool-call capability detection").
func (c *Client) SupportsParallelToolCalls() bool { return false }

func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = c.model
	}

	messages := encodeMessages(req)
	toolParams, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}

	request := openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Tools:       toolParams,
	}
	if len(req.StructuredSchema) > 0 {
		var schema any
		if err := json.Unmarshal(req.StructuredSchema, &schema); err != nil {
			return nil, fmt.Errorf("openai: decode structured schema: %w", err)
		}
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "structured_output",
				Schema: schema,
				Strict: true,
			},
		}
	}

	resp, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	return translateResponse(resp, len(req.StructuredSchema) > 0)
}

func encodeMessages(req *llm.Request) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleUser:
			if m.Text != "" {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
			}
			for _, r := range m.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    r.Content,
					ToolCallID: r.ToolCallID,
				})
			}
		case llm.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		}
	}
	return out
}

func encodeTools(specs []tools.Spec) ([]openai.Tool, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  json.RawMessage(s.Schema),
			},
		})
	}
	return out, nil
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	return false
}

// translateResponse adapts the OpenAI response into llm.Response. When
// structured output was requested, the single choice's content is treated
// as the raw JSON payload rather than free text (spec.md §7
// "fallback-on-null": an empty payload here becomes
// ErrStructuredOutputRequired).
func translateResponse(resp openai.ChatCompletionResponse, structured bool) (*llm.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response had no choices")
	}
	choice := resp.Choices[0]
	out := &llm.Response{
		StopReason:   string(choice.FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if structured {
		if strings.TrimSpace(choice.Message.Content) == "" {
			return nil, llm.ErrStructuredOutputRequired
		}
		out.StructuredOutput = json.RawMessage(choice.Message.Content)
		return out, nil
	}
	out.Text = choice.Message.Content
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}
	return out, nil
}
