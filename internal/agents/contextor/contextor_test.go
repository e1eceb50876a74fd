package contextor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/state"
)

type fakeController struct {
	screen     device.ScreenData
	screenErr  error
	focused    device.FocusedApp
	focusedErr error
	date       string
	dateErr    error
}

func (f *fakeController) Tap(ctx context.Context, x, y int) error                       { return nil }
func (f *fakeController) LongPress(ctx context.Context, x, y int, d time.Duration) error { return nil }
func (f *fakeController) Swipe(ctx context.Context, x1, y1, x2, y2 int, d time.Duration) error {
	return nil
}
func (f *fakeController) TypeText(ctx context.Context, text string) error  { return nil }
func (f *fakeController) PressKey(ctx context.Context, key device.Key) error { return nil }
func (f *fakeController) Backspace(ctx context.Context) error               { return nil }
func (f *fakeController) Back(ctx context.Context) error                    { return nil }
func (f *fakeController) LaunchApp(ctx context.Context, packageID string) error { return nil }
func (f *fakeController) StopApp(ctx context.Context, packageID string) error   { return nil }
func (f *fakeController) OpenLink(ctx context.Context, url string) error        { return nil }
func (f *fakeController) ScreenData(ctx context.Context) (device.ScreenData, error) {
	return f.screen, f.screenErr
}
func (f *fakeController) RichHierarchy(ctx context.Context) ([]*hierarchy.Element, error) {
	return nil, nil
}
func (f *fakeController) FocusedApp(ctx context.Context) (device.FocusedApp, error) {
	return f.focused, f.focusedErr
}
func (f *fakeController) DeviceDate(ctx context.Context) (string, error) { return f.date, f.dateErr }

func TestNodeMergesAllThreeFetches(t *testing.T) {
	c := &fakeController{
		screen:  device.ScreenData{Elements: []*hierarchy.Element{{Text: "hi"}}, Width: 1080, Height: 2400, Base64PNG: "abc"},
		focused: device.FocusedApp{PackageID: "com.example"},
		date:    "2026-08-01T00:00:00Z",
	}
	node := Node(c)

	delta, err := node(context.Background(), state.New("goal", 10))
	require.NoError(t, err)
	require.Len(t, delta.LatestUIHierarchy, 1)
	require.Equal(t, 1080, delta.ScreenSize.Width)
	require.Equal(t, "com.example", delta.FocusedAppInfo.PackageID)
	require.Equal(t, "2026-08-01T00:00:00Z", *delta.DeviceDate)
	require.Empty(t, delta.AgentsThoughts)
}

func TestNodeReturnsDeviceUnavailableOnScreenFailure(t *testing.T) {
	c := &fakeController{screenErr: errors.New("adb not found")}
	node := Node(c)

	_, err := node(context.Background(), state.New("goal", 10))
	require.Error(t, err)
}

func TestNodeTreatsFocusedAndDateFailuresAsThoughts(t *testing.T) {
	c := &fakeController{
		screen:     device.ScreenData{Width: 1, Height: 1},
		focusedErr: errors.New("no foreground app"),
		dateErr:    errors.New("shell timeout"),
	}
	node := Node(c)

	delta, err := node(context.Background(), state.New("goal", 10))
	require.NoError(t, err)
	require.Nil(t, delta.FocusedAppInfo)
	require.Len(t, delta.AgentsThoughts, 2)
}
