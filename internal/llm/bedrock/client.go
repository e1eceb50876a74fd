// Package bedrock implements llm.Client on top of the AWS Bedrock Converse
// API, grounded on features/model/bedrock/client.go. It drops the teacher's
// ledger rehydration (no Temporal workflow history to rehydrate from) and
// prompt-cache checkpoints, keeping the core message/tool encoding shape.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/tools"
)

// RuntimeClient mirrors the subset of the Bedrock runtime client used here.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float32
}

// Client implements llm.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float32
}

var _ llm.Client = (*Client)(nil)

// New builds a Bedrock-backed client from the provided runtime and options.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{
		runtime:      opts.Runtime,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

func (c *Client) SupportsParallelToolCalls() bool { return true }

func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, errors.New("bedrock: model identifier is required")
	}

	toolConfig, err := encodeTools(req.Tools, req.StructuredSchema)
	if err != nil {
		return nil, err
	}
	messages, system, err := encodeMessages(req.Messages, req.System)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig != nil {
		input.ToolConfig = toolConfig
		if len(req.StructuredSchema) > 0 {
			input.ToolConfig.ToolChoice = &brtypes.ToolChoiceMemberTool{
				Value: brtypes.SpecificToolChoice{Name: aws.String(structuredToolName)},
			}
		}
	}
	if cfg := c.inferenceConfig(req.MaxTokens, req.Temperature); cfg != nil {
		input.InferenceConfig = cfg
	}

	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("bedrock: converse: %w", err)
	}
	return translateResponse(output, len(req.StructuredSchema) > 0)
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

func (c *Client) inferenceConfig(maxTokens int, temperature float32) *brtypes.InferenceConfiguration {
	cfg := &brtypes.InferenceConfiguration{}
	set := false
	if maxTokens > 0 {
		mt := int32(maxTokens)
		cfg.MaxTokens = &mt
		set = true
	} else if c.maxTok > 0 {
		mt := int32(c.maxTok)
		cfg.MaxTokens = &mt
		set = true
	}
	if temperature > 0 {
		cfg.Temperature = aws.Float32(temperature)
		set = true
	} else if c.temp > 0 {
		cfg.Temperature = aws.Float32(c.temp)
		set = true
	}
	if !set {
		return nil
	}
	return cfg
}

func encodeMessages(msgs []llm.Message, system string) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var sysBlocks []brtypes.SystemContentBlock
	if system != "" {
		sysBlocks = append(sysBlocks, &brtypes.SystemContentBlockMemberText{Value: system})
	}
	out := make([]brtypes.Message, 0, len(msgs))
	for _, m := range msgs {
		var role brtypes.ConversationRole
		var blocks []brtypes.ContentBlock
		switch m.Role {
		case llm.RoleUser:
			role = brtypes.ConversationRoleUser
			if m.Text != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Text})
			}
			for _, r := range m.ToolResults {
				status := brtypes.ToolResultStatusSuccess
				if r.IsError {
					status = brtypes.ToolResultStatusError
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{
					Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(r.ToolCallID),
						Status:    status,
						Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: r.Content}},
					},
				})
			}
		case llm.RoleAssistant:
			role = brtypes.ConversationRoleAssistant
			if m.Text != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Text})
			}
			for _, tc := range m.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						return nil, nil, fmt.Errorf("bedrock: decode tool call args for %q: %w", tc.Name, err)
					}
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
		default:
			continue
		}
		if len(blocks) == 0 {
			continue
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}
	return out, sysBlocks, nil
}

const structuredToolName = "emit_structured_output"

func encodeTools(specs []tools.Spec, structuredSchema json.RawMessage) (*brtypes.ToolConfiguration, error) {
	if len(specs) == 0 && len(structuredSchema) == 0 {
		return nil, nil
	}
	toolList := make([]brtypes.Tool, 0, len(specs)+1)
	for _, s := range specs {
		var schema any
		if len(s.Schema) > 0 {
			if err := json.Unmarshal(s.Schema, &schema); err != nil {
				return nil, fmt.Errorf("bedrock: decode schema for tool %q: %w", s.Name, err)
			}
		}
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(s.Name),
				Description: aws.String(s.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	if len(structuredSchema) > 0 {
		var schema any
		if err := json.Unmarshal(structuredSchema, &schema); err != nil {
			return nil, fmt.Errorf("bedrock: decode structured schema: %w", err)
		}
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(structuredToolName),
				Description: aws.String("Emit the final structured result for this turn."),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: toolList}, nil
}

func isRateLimited(err error) bool {
	var throttled *brtypes.ThrottlingException
	if errors.As(err, &throttled) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ThrottlingException"
	}
	return false
}

func translateResponse(output *bedrockruntime.ConverseOutput, structured bool) (*llm.Response, error) {
	if output == nil || output.Output == nil {
		return nil, errors.New("bedrock: converse output missing")
	}
	member, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("bedrock: unexpected converse output shape")
	}
	resp := &llm.Response{StopReason: string(output.StopReason)}
	if output.Usage != nil {
		resp.InputTokens = int(aws.ToInt32(output.Usage.InputTokens))
		resp.OutputTokens = int(aws.ToInt32(output.Usage.OutputTokens))
	}
	for _, block := range member.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Text += b.Value
		case *brtypes.ContentBlockMemberToolUse:
			raw, err := documentToJSON(b.Value.Input)
			if err != nil {
				return nil, fmt.Errorf("bedrock: decode tool_use input: %w", err)
			}
			if structured && aws.ToString(b.Value.Name) == structuredToolName {
				resp.StructuredOutput = raw
				continue
			}
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: raw,
			})
		}
	}
	if structured && resp.StructuredOutput == nil {
		return nil, llm.ErrStructuredOutputRequired
	}
	return resp, nil
}

func documentToJSON(doc document.Interface) (json.RawMessage, error) {
	if doc == nil {
		return nil, nil
	}
	var v any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
