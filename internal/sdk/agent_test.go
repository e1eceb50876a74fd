package sdk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/state"
)

type fakeController struct {
	launched []string
}

func (f *fakeController) Tap(ctx context.Context, x, y int) error { return nil }
func (f *fakeController) LongPress(ctx context.Context, x, y int, d time.Duration) error {
	return nil
}
func (f *fakeController) Swipe(ctx context.Context, x1, y1, x2, y2 int, d time.Duration) error {
	return nil
}
func (f *fakeController) TypeText(ctx context.Context, text string) error  { return nil }
func (f *fakeController) PressKey(ctx context.Context, key device.Key) error { return nil }
func (f *fakeController) Backspace(ctx context.Context) error              { return nil }
func (f *fakeController) Back(ctx context.Context) error                  { return nil }
func (f *fakeController) LaunchApp(ctx context.Context, packageID string) error {
	f.launched = append(f.launched, packageID)
	return nil
}
func (f *fakeController) StopApp(ctx context.Context, packageID string) error { return nil }
func (f *fakeController) OpenLink(ctx context.Context, url string) error     { return nil }
func (f *fakeController) ScreenData(ctx context.Context) (device.ScreenData, error) {
	return device.ScreenData{Width: 1080, Height: 1920}, nil
}
func (f *fakeController) RichHierarchy(ctx context.Context) ([]*hierarchy.Element, error) {
	return nil, nil
}
func (f *fakeController) FocusedApp(ctx context.Context) (device.FocusedApp, error) {
	return device.FocusedApp{PackageID: "com.current"}, nil
}
func (f *fakeController) DeviceDate(ctx context.Context) (string, error) { return "", nil }

type stubClient struct{}

func (stubClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return &llm.Response{}, nil
}

func testConfig(t *testing.T, dev device.Controller) Config {
	t.Helper()
	profiles := map[string]llm.Profile{
		"planner":      {Name: "planner", Client: stubClient{}},
		"orchestrator": {Name: "orchestrator", Client: stubClient{}},
		"cortex":       {Name: "cortex", Client: stubClient{}},
		"executor":     {Name: "executor", Client: stubClient{}},
		"hopper":       {Name: "hopper", Client: stubClient{}},
		"outputter":    {Name: "outputter", Client: stubClient{}},
	}
	return Config{
		Mux:                 llm.NewMultiplexer(profiles, nil),
		PlannerProfile:      "planner",
		OrchestratorProfile: "orchestrator",
		CortexProfile:       "cortex",
		ExecutorProfile:     "executor",
		HopperProfile:       "hopper",
		OutputterProfile:    "outputter",
		Device:              dev,
		SessionID:           "dev-1",
		DefaultMaxSteps:     10,
	}
}

func TestInitBuildsAgent(t *testing.T) {
	a, err := Init(testConfig(t, &fakeController{}))
	require.NoError(t, err)
	require.NotNil(t, a)
	require.NotEmpty(t, a.specs)
}

func TestInitRequiresMuxAndDevice(t *testing.T) {
	_, err := Init(Config{})
	require.Error(t, err)
}

func TestBuildGraphWiresEveryNode(t *testing.T) {
	a, err := Init(testConfig(t, &fakeController{}))
	require.NoError(t, err)

	g, err := a.buildGraph(TaskRequest{Goal: "do something"})
	require.NoError(t, err)
	require.Equal(t, nodePlanner, g.Entry)
	for _, name := range []string{
		nodePlanner, nodeOrchestrator, nodeContextor, nodeCortex,
		nodeExecutor, nodeExecTools, nodeSummarizer, nodeConvergence,
	} {
		require.Contains(t, g.Nodes, name)
		require.Contains(t, g.Routers, name)
	}
}

func TestMaybeRelaunchSkipsWithoutLockedPackage(t *testing.T) {
	dev := &fakeController{}
	a, err := Init(testConfig(t, dev))
	require.NoError(t, err)

	s := state.New("goal", 5)
	next := a.maybeRelaunch(s, TaskRequest{}, nodeContextor)
	require.Equal(t, nodeContextor, next)
	require.Empty(t, dev.launched)
}

func TestMaybeRelaunchRelaunchesOnDrift(t *testing.T) {
	dev := &fakeController{}
	a, err := Init(testConfig(t, dev))
	require.NoError(t, err)

	s := state.New("goal", 5)
	s.Apply(state.Delta{FocusedAppInfo: &state.FocusedAppInfo{PackageID: "com.other"}})

	next := a.maybeRelaunch(s, TaskRequest{LockedAppPackage: "com.target"}, nodeContextor)
	require.Equal(t, nodeContextor, next)
	require.Equal(t, []string{"com.target"}, dev.launched)
}

func TestMaybeRelaunchSkipsWhenAlreadyFocused(t *testing.T) {
	dev := &fakeController{}
	a, err := Init(testConfig(t, dev))
	require.NoError(t, err)

	s := state.New("goal", 5)
	s.Apply(state.Delta{FocusedAppInfo: &state.FocusedAppInfo{PackageID: "com.target"}})

	a.maybeRelaunch(s, TaskRequest{LockedAppPackage: "com.target"}, nodeContextor)
	require.Empty(t, dev.launched)
}
