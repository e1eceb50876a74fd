package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitialGoalImmutable(t *testing.T) {
	s := New("order a pizza", 10)
	changed := "do something else"
	s.Apply(Sanitize("planner", Delta{InitialGoal: &changed}))
	require.Equal(t, "order a pizza", s.InitialGoal())
}

func TestAgentsThoughtsAppend(t *testing.T) {
	s := New("goal", 5)
	s.Apply(Sanitize("orchestrator", Delta{AgentsThoughts: []string{"first"}}))
	s.Apply(Sanitize("orchestrator", Delta{AgentsThoughts: []string{"second"}}))
	require.Equal(t, []string{"first", "second"}, s.AgentsThoughts())
}

func TestAgentsThoughtsDropsEmpty(t *testing.T) {
	s := New("goal", 5)
	s.Apply(Sanitize("orchestrator", Delta{AgentsThoughts: []string{"  ", "real"}}))
	require.Equal(t, []string{"real"}, s.AgentsThoughts())
}

func TestRemainingStepsMonotonicNonIncreasing(t *testing.T) {
	s := New("goal", 3)
	require.Equal(t, 2, s.DecrementRemainingSteps())
	require.Equal(t, 1, s.DecrementRemainingSteps())
	require.Equal(t, 0, s.DecrementRemainingSteps())
	require.Equal(t, 0, s.DecrementRemainingSteps())
}

func TestAtMostOneSubgoalRunning(t *testing.T) {
	plan := Plan{
		{ID: "a", Status: SubgoalRunning},
		{ID: "b", Status: SubgoalRunning},
	}
	s := New("goal", 5)
	s.Apply(Sanitize("planner", Delta{SubgoalPlan: &plan}))
	running := 0
	for _, sg := range s.SubgoalPlan() {
		if sg.Status == SubgoalRunning {
			running++
		}
	}
	require.Equal(t, 1, running)
}

func TestCompleteSubgoalsClearedOnOrchestratorExit(t *testing.T) {
	s := New("goal", 5)
	s.Apply(Sanitize("cortex", Delta{CompleteSubgoalsByIDs: []string{"a", "b"}}))
	require.Equal(t, []string{"a", "b"}, s.CompleteSubgoalsByIDs())

	s.Apply(Sanitize("orchestrator", Delta{ClearCompleteSubgoals: true}))
	require.Empty(t, s.CompleteSubgoalsByIDs())
}

func TestStructuredDecisionsClearedAfterExecutor(t *testing.T) {
	s := New("goal", 5)
	decisions := `{"tap":true}`
	s.Apply(Sanitize("cortex", Delta{StructuredDecisions: &decisions}))
	require.NotNil(t, s.StructuredDecisions())

	s.Apply(Sanitize("executor", Delta{ClearStructuredDecisions: true}))
	require.Nil(t, s.StructuredDecisions())
}

func TestWriteLogRecordsAgent(t *testing.T) {
	s := New("goal", 5)
	s.Apply(Sanitize("contextor", Delta{DeviceDate: strPtr("2026-08-01")}))
	log := s.WriteLog()
	require.Len(t, log, 1)
	require.Equal(t, "contextor", log[0].Agent)
	require.Contains(t, log[0].Fields, "device_date")
}

func strPtr(s string) *string { return &s }
