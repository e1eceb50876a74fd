// Package executor implements the Executor and ExecutorTools agent nodes,
// grounded on agents/executor/executor.py and tools/mobile/*.py (spec.md
// §4.6): Executor binds the tool catalog to the LLM and decides whether to
// invoke tools; ExecutorTools dispatches each requested tool call against
// the device, running them in parallel when the provider supports it.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/taskerr"
	"github.com/x7722/mobile-use/internal/telemetry"
	"github.com/x7722/mobile-use/internal/tools"
	"github.com/x7722/mobile-use/internal/toolexec"
)

// ExecutorNode builds the Executor graph.Node: it binds specs to the model
// and lets it decide whether the stringified decisions warrant one or more
// tool calls.
func ExecutorNode(mux *llm.Multiplexer, profile string, specs []tools.Spec, logger telemetry.Logger) func(ctx context.Context, s *state.State) (state.Delta, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return func(ctx context.Context, s *state.State) (state.Delta, error) {
		decisions := s.StructuredDecisions()
		if decisions == nil || *decisions == "" {
			return state.Delta{}, nil
		}

		messages := toLLMMessages(s.ExecutorMessages())
		messages = append(messages, llm.Message{Role: llm.RoleUser, Text: *decisions})

		resp, err := mux.Complete(ctx, profile, &llm.Request{
			System:   "You translate a decided action plan into concrete device tool calls.",
			Messages: messages,
			Tools:    specs,
		})
		if err != nil {
			return state.Delta{}, taskerr.New(taskerr.KindLLMFailure, err)
		}

		assistantMsg := state.Message{Role: state.RoleAssistant, Text: resp.Text}
		for _, tc := range resp.ToolCalls {
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, state.ToolCall{
				ID:        tc.ID,
				ToolName:  tc.Name,
				Arguments: tc.Arguments,
			})
		}

		return state.Sanitize("executor", state.Delta{
			ExecutorMessages:        []state.Message{assistantMsg},
			ClearStructuredDecisions: true,
		}), nil
	}
}

// ExecutorRouter routes "invoke_tools" when the last assistant message
// requested tool calls, else "skip" (spec.md §4.6).
func ExecutorRouter(s *state.State) string {
	msgs := s.ExecutorMessages()
	if len(msgs) == 0 {
		return "skip"
	}
	last := msgs[len(msgs)-1]
	if last.HasToolCalls() {
		return "invoke_tools"
	}
	return "skip"
}

// ToolsNode builds the ExecutorTools graph.Node against exec, dispatching
// every pending tool call from the last assistant message, in parallel when
// parallel supports it (spec.md §5).
func ToolsNode(exec *toolexec.Executor, registry *tools.Registry, parallel bool, logger telemetry.Logger) func(ctx context.Context, s *state.State) (state.Delta, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return func(ctx context.Context, s *state.State) (state.Delta, error) {
		msgs := s.ExecutorMessages()
		if len(msgs) == 0 {
			return state.Delta{}, nil
		}
		last := msgs[len(msgs)-1]
		if !last.HasToolCalls() {
			return state.Delta{}, nil
		}

		elements := s.LatestUIHierarchy()
		size := s.ScreenSize()

		run := func(call state.ToolCall) (state.Message, string) {
			if err := validateArgs(registry, call); err != nil {
				return errorResult(call, err), fmt.Sprintf("%s failed: %v", call.ToolName, err)
			}
			res, err := exec.Execute(ctx, call.ToolName, json.RawMessage(call.Arguments), elements, size.Width, size.Height)
			if err != nil {
				return errorResult(call, err), fmt.Sprintf("%s failed: %v", call.ToolName, err)
			}
			if res.IsError {
				return errorResult(call, fmt.Errorf("%s", res.Content)), res.Content
			}
			return state.Message{
				Role:       state.RoleTool,
				Text:       res.Content,
				ToolCallID: call.ID,
				ToolStatus: state.ToolResultSuccess,
			}, res.Content
		}

		results := make([]state.Message, len(last.ToolCalls))
		thoughts := make([]string, len(last.ToolCalls))

		if parallel && len(last.ToolCalls) > 1 {
			var wg sync.WaitGroup
			wg.Add(len(last.ToolCalls))
			for i, call := range last.ToolCalls {
				go func(i int, call state.ToolCall) {
					defer wg.Done()
					results[i], thoughts[i] = run(call)
				}(i, call)
			}
			wg.Wait()
		} else {
			for i, call := range last.ToolCalls {
				results[i], thoughts[i] = run(call)
			}
		}

		return state.Sanitize("executor_tools", state.Delta{
			ExecutorMessages: results,
			AgentsThoughts:   thoughts,
		}), nil
	}
}

func validateArgs(registry *tools.Registry, call state.ToolCall) error {
	if registry == nil {
		return nil
	}
	var decoded any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &decoded); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	} else {
		decoded = map[string]any{}
	}
	return registry.Validate(context.Background(), call.ToolName, decoded)
}

func errorResult(call state.ToolCall, err error) state.Message {
	return state.Message{
		Role:       state.RoleTool,
		Text:       err.Error(),
		ToolCallID: call.ID,
		ToolStatus: state.ToolResultError,
	}
}

func toLLMMessages(msgs []state.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		lm := llm.Message{Text: m.Text}
		switch m.Role {
		case state.RoleSystem:
			lm.Role = llm.RoleSystem
		case state.RoleUser:
			lm.Role = llm.RoleUser
		case state.RoleTool:
			lm.Role = llm.RoleUser
			lm.Text = strings.TrimSpace(fmt.Sprintf("tool result (%s): %s", m.ToolCallID, m.Text))
		default:
			lm.Role = llm.RoleAssistant
		}
		out = append(out, lm)
	}
	return out
}
