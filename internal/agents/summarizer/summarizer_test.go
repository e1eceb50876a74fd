package summarizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/state"
)

func TestNodeSummarizesToolResultTail(t *testing.T) {
	node := Node(2)
	s := state.New("goal", 10)
	s.Apply(state.Delta{ExecutorMessages: []state.Message{
		{Role: state.RoleAssistant, Text: "calling tap"},
		{Role: state.RoleTool, Text: "Tapped successfully", ToolStatus: state.ToolResultSuccess},
		{Role: state.RoleTool, Text: "element not found", ToolStatus: state.ToolResultError},
	}})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, delta.AgentsThoughts, 1)
	require.Contains(t, delta.AgentsThoughts[0], "ok: Tapped successfully")
	require.Contains(t, delta.AgentsThoughts[0], "error: element not found")
}

func TestNodeNoOpsWhenNoMessages(t *testing.T) {
	node := Node(4)
	delta, err := node(context.Background(), state.New("goal", 10))
	require.NoError(t, err)
	require.Empty(t, delta.AgentsThoughts)
}
