package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/tools"
	"github.com/x7722/mobile-use/internal/toolexec"
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
		"executor": {Name: "executor", Client: client},
	}, nil)
}

func TestExecutorNodeSkipsWhenNoDecisions(t *testing.T) {
	node := ExecutorNode(muxWith(&stubClient{}), "executor", nil, nil)
	delta, err := node(context.Background(), state.New("goal", 10))
	require.NoError(t, err)
	require.Empty(t, delta.ExecutorMessages)
}

func TestExecutorNodeRecordsToolCalls(t *testing.T) {
	client := &stubClient{resp: &llm.Response{
		ToolCalls: []llm.ToolCall{{ID: "1", Name: "tap", Arguments: []byte(`{"text":"OK"}`)}},
	}}
	node := ExecutorNode(muxWith(client), "executor", tools.Catalog(), nil)

	s := state.New("goal", 10)
	decisions := `{"action":"tap OK"}`
	s.Apply(state.Delta{StructuredDecisions: &decisions})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, delta.ExecutorMessages, 1)
	require.True(t, delta.ExecutorMessages[0].HasToolCalls())
	require.True(t, delta.ClearStructuredDecisions)
}

func TestExecutorRouterDecidesOnLastMessage(t *testing.T) {
	s := state.New("goal", 10)
	require.Equal(t, "skip", ExecutorRouter(s))

	withCall := state.Message{Role: state.RoleAssistant, ToolCalls: []state.ToolCall{{ID: "1", ToolName: "tap"}}}
	s.Apply(state.Delta{ExecutorMessages: []state.Message{withCall}})
	require.Equal(t, "invoke_tools", ExecutorRouter(s))
}

type fakeController struct{}

func (f *fakeController) Tap(ctx context.Context, x, y int) error                       { return nil }
func (f *fakeController) LongPress(ctx context.Context, x, y int, d time.Duration) error { return nil }
func (f *fakeController) Swipe(ctx context.Context, x1, y1, x2, y2 int, d time.Duration) error {
	return nil
}
func (f *fakeController) TypeText(ctx context.Context, text string) error     { return nil }
func (f *fakeController) PressKey(ctx context.Context, key device.Key) error  { return nil }
func (f *fakeController) Backspace(ctx context.Context) error                 { return nil }
func (f *fakeController) Back(ctx context.Context) error                      { return nil }
func (f *fakeController) LaunchApp(ctx context.Context, packageID string) error { return nil }
func (f *fakeController) StopApp(ctx context.Context, packageID string) error   { return nil }
func (f *fakeController) OpenLink(ctx context.Context, url string) error        { return nil }
func (f *fakeController) ScreenData(ctx context.Context) (device.ScreenData, error) {
	return device.ScreenData{}, nil
}
func (f *fakeController) RichHierarchy(ctx context.Context) ([]*hierarchy.Element, error) {
	return nil, nil
}
func (f *fakeController) FocusedApp(ctx context.Context) (device.FocusedApp, error) {
	return device.FocusedApp{}, nil
}
func (f *fakeController) DeviceDate(ctx context.Context) (string, error) { return "", nil }

func TestToolsNodeDispatchesAndAppendsResult(t *testing.T) {
	registry, err := tools.NewRegistry(tools.Catalog())
	require.NoError(t, err)
	exec := &toolexec.Executor{Controller: &fakeController{}}
	node := ToolsNode(exec, registry, false, nil)

	elements := []*hierarchy.Element{{Text: "OK", BoundsRaw: "[0,0][10,10]"}}
	s := state.New("goal", 10)
	s.Apply(state.Delta{LatestUIHierarchy: elements, ScreenSize: &state.ScreenSize{Width: 100, Height: 100}})
	call := state.Message{Role: state.RoleAssistant, ToolCalls: []state.ToolCall{
		{ID: "1", ToolName: "tap", Arguments: []byte(`{"text":"OK"}`)},
	}}
	s.Apply(state.Delta{ExecutorMessages: []state.Message{call}})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, delta.ExecutorMessages, 1)
	require.Equal(t, state.ToolResultSuccess, delta.ExecutorMessages[0].ToolStatus)
}

func TestToolsNodeReturnsErrorResultOnInvalidArgs(t *testing.T) {
	registry, err := tools.NewRegistry(tools.Catalog())
	require.NoError(t, err)
	exec := &toolexec.Executor{Controller: &fakeController{}}
	node := ToolsNode(exec, registry, false, nil)

	s := state.New("goal", 10)
	call := state.Message{Role: state.RoleAssistant, ToolCalls: []state.ToolCall{
		{ID: "1", ToolName: "tap", Arguments: []byte(`{"unknown_field":true}`)},
	}}
	s.Apply(state.Delta{ExecutorMessages: []state.Message{call}})

	delta, err := node(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, state.ToolResultError, delta.ExecutorMessages[0].ToolStatus)
}
