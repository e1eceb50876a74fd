package toolexec

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/taskerr"
)

type fakeController struct {
	device.Controller
	taps      []hierarchy.Point
	typed     []string
	backspace int
	launched  string
	tapErr    error
}

func (f *fakeController) Tap(ctx context.Context, x, y int) error {
	f.taps = append(f.taps, hierarchy.Point{X: x, Y: y})
	return f.tapErr
}
func (f *fakeController) TypeText(ctx context.Context, text string) error {
	f.typed = append(f.typed, text)
	return nil
}
func (f *fakeController) Backspace(ctx context.Context) error { f.backspace++; return nil }
func (f *fakeController) LaunchApp(ctx context.Context, pkg string) error {
	f.launched = pkg
	return nil
}
func (f *fakeController) Swipe(ctx context.Context, x1, y1, x2, y2 int, d time.Duration) error {
	return nil
}

type fakeResolver struct {
	pkg string
	err error
}

func (r fakeResolver) ResolvePackage(ctx context.Context, appName string, installed []string) (string, error) {
	return r.pkg, r.err
}

type fakeLister struct{ pkgs []string }

func (l fakeLister) ListPackages(ctx context.Context) ([]string, error) { return l.pkgs, nil }

func TestExecuteTapByResourceID(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}
	elements := []*hierarchy.Element{{ResourceID: "btn", BoundsRaw: "[0,0][100,100]"}}

	res, err := exec.Execute(context.Background(), "tap", []byte(`{"resource_id":"btn"}`), elements, 1080, 1920)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, ctrl.taps, 1)
	require.Equal(t, 50, ctrl.taps[0].X)
}

func TestExecuteTapMissingElementReturnsErrorResult(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}

	res, err := exec.Execute(context.Background(), "tap", []byte(`{"resource_id":"missing"}`), nil, 1080, 1920)
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Empty(t, ctrl.taps)
}

func TestExecuteTapByResourceIDWithMatchingTextSucceeds(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}
	elements := []*hierarchy.Element{{ResourceID: "row_item", Text: "Alice", BoundsRaw: "[0,0][100,100]"}}

	res, err := exec.Execute(context.Background(), "tap", []byte(`{"resource_id":"row_item","text":"alice"}`), elements, 1080, 1920)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, ctrl.taps, 1)
}

func TestExecuteTapByResourceIDWithMismatchedTextFallsThroughToCoordinates(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}
	// Shared template resource_id across list rows; text is the real
	// disambiguator and doesn't match this element, so the id must be
	// discarded and the chain falls through to coordinates.
	elements := []*hierarchy.Element{{ResourceID: "row_item", Text: "Bob", BoundsRaw: "[0,0][100,100]"}}

	res, err := exec.Execute(context.Background(), "tap", []byte(`{"resource_id":"row_item","text":"alice","x":10,"y":20}`), elements, 1080, 1920)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, hierarchy.Point{X: 10, Y: 20}, ctrl.taps[0])
}

func TestExecuteTapByResourceIDWithMismatchedTextFallsThroughToTextSearch(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}
	elements := []*hierarchy.Element{
		{ResourceID: "row_item", Text: "Bob", BoundsRaw: "[0,0][100,100]"},
		{ResourceID: "row_item", Text: "Alice", BoundsRaw: "[200,200][300,300]"},
	}

	res, err := exec.Execute(context.Background(), "tap", []byte(`{"resource_id":"row_item","text":"alice"}`), elements, 1080, 1920)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, ctrl.taps, 1)
	require.Equal(t, 250, ctrl.taps[0].X)
}

func TestExecuteTapByResourceIDWithMismatchedTextAndNoFallbackReturnsError(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}
	elements := []*hierarchy.Element{{ResourceID: "row_item", Text: "Bob", BoundsRaw: "[0,0][100,100]"}}

	res, err := exec.Execute(context.Background(), "tap", []byte(`{"resource_id":"row_item","text":"alice"}`), elements, 1080, 1920)
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Empty(t, ctrl.taps)
}

func TestExecuteTapByCoordinates(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}

	res, err := exec.Execute(context.Background(), "tap", []byte(`{"x":10,"y":20}`), nil, 1080, 1920)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, hierarchy.Point{X: 10, Y: 20}, ctrl.taps[0])
}

func TestExecuteFocusAndInputTextWithoutTarget(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}

	res, err := exec.Execute(context.Background(), "focus_and_input_text", []byte(`{"text":"hello"}`), nil, 1080, 1920)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, []string{"hello"}, ctrl.typed)
	require.Empty(t, ctrl.taps)
}

func TestExecuteFocusAndClearTextErasesSixtyFourChars(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}

	_, err := exec.Execute(context.Background(), "focus_and_clear_text", []byte(`{}`), nil, 1080, 1920)
	require.NoError(t, err)
	require.Equal(t, 64, ctrl.backspace)
}

func TestExecuteLaunchAppResolvesPackage(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl, Packages: fakeLister{pkgs: []string{"com.app"}}, Resolver: fakeResolver{pkg: "com.app"}}

	res, err := exec.Execute(context.Background(), "launch_app", []byte(`{"app_name":"My App"}`), nil, 0, 0)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "com.app", ctrl.launched)
}

func TestExecuteLaunchAppUnresolvedReturnsPackageNotFound(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl, Packages: fakeLister{}, Resolver: fakeResolver{err: errors.New("no match")}}

	_, err := exec.Execute(context.Background(), "launch_app", []byte(`{"app_name":"Ghost"}`), nil, 0, 0)
	require.True(t, taskerr.Is(err, taskerr.KindPackageNotFound))
}

func TestExecuteUnknownTool(t *testing.T) {
	exec := &Executor{Controller: &fakeController{}}
	_, err := exec.Execute(context.Background(), "nonexistent", []byte(`{}`), nil, 0, 0)
	require.Error(t, err)
}

func TestExecuteWaitForDelayRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &Executor{Controller: &fakeController{}}

	_, err := exec.Execute(ctx, "wait_for_delay", []byte(`{"delay_ms":1000}`), nil, 0, 0)
	require.True(t, taskerr.Is(err, taskerr.KindCancelled))
}

func TestExecuteSwipeByDirection(t *testing.T) {
	ctrl := &fakeController{}
	exec := &Executor{Controller: ctrl}

	res, err := exec.Execute(context.Background(), "swipe", []byte(`{"direction":"UP"}`), nil, 1000, 2000)
	require.NoError(t, err)
	require.False(t, res.IsError)
}
