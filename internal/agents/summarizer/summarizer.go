// Package summarizer implements the Summarizer agent node, grounded on
// agents/summarizer/summarizer.py: a pure transformation that appends a
// compact summary of the just-executed action(s) to agents_thoughts,
// reading only the executor_messages tail (spec.md §4.10).
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/x7722/mobile-use/internal/state"
)

// Node builds the Summarizer graph.Node. tail bounds how many trailing
// executor_messages are considered for the summary.
func Node(tail int) func(ctx context.Context, s *state.State) (state.Delta, error) {
	if tail <= 0 {
		tail = 4
	}
	return func(ctx context.Context, s *state.State) (state.Delta, error) {
		msgs := s.ExecutorMessages()
		if len(msgs) == 0 {
			return state.Delta{}, nil
		}
		if len(msgs) > tail {
			msgs = msgs[len(msgs)-tail:]
		}

		var parts []string
		for _, m := range msgs {
			if m.Role != state.RoleTool {
				continue
			}
			status := "ok"
			if m.ToolStatus == state.ToolResultError {
				status = "error"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", status, strings.TrimSpace(m.Text)))
		}
		if len(parts) == 0 {
			return state.Delta{}, nil
		}

		summary := strings.Join(parts, "; ")
		return state.Sanitize("summarizer", state.Delta{
			AgentsThoughts: []string{summary},
		}), nil
	}
}
