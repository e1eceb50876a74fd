package orchestrator

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
		"orchestrator": {Name: "orchestrator", Client: client},
	}, nil)
}

func planWith(statuses ...state.SubgoalStatus) state.Plan {
	plan := make(state.Plan, len(statuses))
	for i, st := range statuses {
		plan[i] = state.Subgoal{ID: string(rune('a' + i)), Description: "sg", Status: st}
	}
	return plan
}

func TestNodeAdvancesFirstSubgoalWhenNothingStarted(t *testing.T) {
	node := Node(muxWith(&stubClient{}), "orchestrator", nil)
	s := state.New("goal", 10)
	plan := planWith(state.SubgoalNotStarted, state.SubgoalNotStarted)
	s.Apply(state.Delta{SubgoalPlan: &plan})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, state.SubgoalRunning, (*delta.SubgoalPlan)[0].Status)
	require.True(t, delta.ClearCompleteSubgoals)
}

func TestNodeNoOpsWhenNothingReportedComplete(t *testing.T) {
	node := Node(muxWith(&stubClient{}), "orchestrator", nil)
	s := state.New("goal", 10)
	plan := planWith(state.SubgoalRunning, state.SubgoalNotStarted)
	s.Apply(state.Delta{SubgoalPlan: &plan})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.Nil(t, delta.SubgoalPlan)
	require.True(t, delta.ClearCompleteSubgoals)
}

func TestNodeMarksReplanOnNeedsReplaning(t *testing.T) {
	client := &stubClient{resp: &llm.Response{
		StructuredOutput: json.RawMessage(`{"needs_replaning":true,"reason":"stuck","completed_subgoal_ids":[]}`),
	}}
	node := Node(muxWith(client), "orchestrator", nil)
	s := state.New("goal", 10)
	plan := planWith(state.SubgoalRunning, state.SubgoalNotStarted)
	s.Apply(state.Delta{SubgoalPlan: &plan, CompleteSubgoalsByIDs: []string{"a"}})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, state.SubgoalFailure, (*delta.SubgoalPlan)[0].Status)
	require.Contains(t, delta.AgentsThoughts, "stuck")
}

func TestNodeCompletesAndAdvances(t *testing.T) {
	client := &stubClient{resp: &llm.Response{
		StructuredOutput: json.RawMessage(`{"needs_replaning":false,"reason":"","completed_subgoal_ids":["a"]}`),
	}}
	node := Node(muxWith(client), "orchestrator", nil)
	s := state.New("goal", 10)
	plan := planWith(state.SubgoalRunning, state.SubgoalNotStarted)
	s.Apply(state.Delta{SubgoalPlan: &plan, CompleteSubgoalsByIDs: []string{"a"}})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	updated := *delta.SubgoalPlan
	require.Equal(t, state.SubgoalSuccess, updated[0].Status)
	require.Equal(t, state.SubgoalRunning, updated[1].Status)
}

func TestRouterPredicates(t *testing.T) {
	withFailure := state.New("goal", 10)
	plan := planWith(state.SubgoalFailure)
	withFailure.Apply(state.Delta{SubgoalPlan: &plan})
	require.Equal(t, "replan", Router(withFailure))

	allSuccess := state.New("goal", 10)
	done := planWith(state.SubgoalSuccess, state.SubgoalSuccess)
	allSuccess.Apply(state.Delta{SubgoalPlan: &done})
	require.Equal(t, "end", Router(allSuccess))

	running := state.New("goal", 10)
	inFlight := planWith(state.SubgoalRunning, state.SubgoalNotStarted)
	running.Apply(state.Delta{SubgoalPlan: &inFlight})
	require.Equal(t, "continue", Router(running))
}
