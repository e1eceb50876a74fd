package planner

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/state"
)

type stubClient struct {
	resp *llm.Response
	err  error
}

func (c *stubClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return c.resp, c.err
}

func muxWith(client llm.Client) *llm.Multiplexer {
	return llm.NewMultiplexer(map[string]llm.Profile{
		"planner": {Name: "planner", Client: client},
	}, nil)
}

func TestNodeProducesFreshPlanOnFirstRun(t *testing.T) {
	client := &stubClient{resp: &llm.Response{
		StructuredOutput: json.RawMessage(`{"subgoals":[{"description":"open settings"},{"description":"tap wifi"}]}`),
	}}
	node := Node(muxWith(client), "planner", []string{"tap", "swipe"}, nil)

	s := state.New("turn on wifi", 10)
	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, delta.SubgoalPlan)
	require.Len(t, *delta.SubgoalPlan, 2)
	for _, sg := range *delta.SubgoalPlan {
		require.Equal(t, state.SubgoalNotStarted, sg.Status)
		require.NotEmpty(t, sg.ID)
	}
}

func TestNodeReturnsPlanningErrorOnEmptyOutput(t *testing.T) {
	client := &stubClient{resp: &llm.Response{}}
	node := Node(muxWith(client), "planner", nil, nil)

	_, err := node(context.Background(), state.New("goal", 10))
	require.Error(t, err)
}

func TestNodeReplansWhenPlanHasFailure(t *testing.T) {
	client := &stubClient{resp: &llm.Response{
		StructuredOutput: json.RawMessage(`{"subgoals":[{"description":"retry step"}]}`),
	}}
	node := Node(muxWith(client), "planner", nil, nil)

	s := state.New("goal", 10)
	failed := state.Plan{{ID: "1", Description: "old", Status: state.SubgoalFailure}}
	s.Apply(state.Delta{SubgoalPlan: &failed})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, *delta.SubgoalPlan, 1)
	require.Equal(t, "retry step", (*delta.SubgoalPlan)[0].Description)
}
