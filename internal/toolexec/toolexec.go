// Package toolexec dispatches validated tool calls onto a device.Controller,
// grounded on tools/mobile/*.py in the original source. Each canonical tool
// resolves its Target through the resource_id → coordinates → text fallback
// chain (spec.md §9) before issuing the underlying device action.
package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/selector"
	"github.com/x7722/mobile-use/internal/taskerr"
)

// AppResolver resolves a human-readable app name to a package id, delegating
// to the Hopper agent per SPEC_FULL.md §4.6 launch_app/stop_app grounding.
type AppResolver interface {
	ResolvePackage(ctx context.Context, appName string, installed []string) (string, error)
}

// PackageLister lists installed package ids, used to build the candidate set
// AppResolver chooses from.
type PackageLister interface {
	ListPackages(ctx context.Context) ([]string, error)
}

// Executor dispatches tool calls against a device.Controller.
type Executor struct {
	Controller device.Controller
	Packages   PackageLister
	Resolver   AppResolver
}

// Result is the outcome of a single tool call, translated into an
// llm.ToolResult by the caller.
type Result struct {
	Content string
	IsError bool
}

// targetArgs is the common shape of tap/long_press_on/focus_and_* payloads.
type targetArgs struct {
	ResourceID      string `json:"resource_id,omitempty"`
	ResourceIDIndex *int   `json:"resource_id_index,omitempty"`
	Text            string `json:"text,omitempty"`
	TextIndex       *int   `json:"text_index,omitempty"`
	X               *int   `json:"x,omitempty"`
	Y               *int   `json:"y,omitempty"`
}

func (a targetArgs) toTarget() selector.Target {
	t := selector.Target{
		ResourceID:      a.ResourceID,
		ResourceIDIndex: a.ResourceIDIndex,
		Text:            a.Text,
		TextIndex:       a.TextIndex,
	}
	if a.X != nil && a.Y != nil {
		t.Coordinates = &selector.Point{X: *a.X, Y: *a.Y}
	}
	return t
}

// Execute dispatches a single tool call by name, grounded on the
// corresponding tools/mobile/<name>.py file.
func (e *Executor) Execute(ctx context.Context, name string, rawArgs json.RawMessage, hierarchy []*hierarchy.Element, screenW, screenH int) (Result, error) {
	switch name {
	case "tap":
		return e.tap(ctx, rawArgs, hierarchy, screenW, screenH)
	case "long_press_on":
		return e.longPress(ctx, rawArgs, hierarchy, screenW, screenH)
	case "swipe":
		return e.swipe(ctx, rawArgs, screenW, screenH)
	case "focus_and_input_text":
		return e.focusAndInputText(ctx, rawArgs, hierarchy, screenW, screenH)
	case "focus_and_clear_text":
		return e.focusAndClearText(ctx, rawArgs, hierarchy, screenW, screenH)
	case "erase_one_char":
		return e.eraseOneChar(ctx)
	case "launch_app":
		return e.launchApp(ctx, rawArgs)
	case "stop_app":
		return e.stopApp(ctx, rawArgs)
	case "open_link":
		return e.openLink(ctx, rawArgs)
	case "back":
		return e.back(ctx)
	case "press_key":
		return e.pressKey(ctx, rawArgs)
	case "wait_for_delay":
		return e.waitForDelay(ctx, rawArgs)
	default:
		return Result{}, taskerr.Newf(taskerr.KindUIElementNotFound, "toolexec: unknown tool %q", name)
	}
}

// withLocator attaches locator to err if it carries taskerr metadata,
// otherwise returns err unchanged.
func withLocator(err error, locator string) error {
	var te *taskerr.Error
	if errors.As(err, &te) {
		return te.WithLocator(locator)
	}
	return err
}

// resolveTarget implements the fallback chain: resource_id → coordinates →
// text (spec.md §9, §4.7 step 1-4). A resource_id match is discarded (and
// the chain falls through to coordinates, then text) when it isn't found at
// all, or when Target also carries text that doesn't cross-check against
// the matched element's text.
func (e *Executor) resolveTarget(t selector.Target, elements []*hierarchy.Element, screenW, screenH int) (selector.Point, string, error) {
	var lastErr error
	var lastLocator string

	if t.ResourceID != "" {
		locator := selector.Describe("resource_id", t)
		el := hierarchy.FindByResourceID(elements, t.ResourceID, t.ResourceIDIndex)
		switch {
		case el == nil:
			lastLocator, lastErr = locator, taskerr.Newf(taskerr.KindUIElementNotFound, "element with resource_id %q not found", t.ResourceID)
		case t.Text != "" && !elementTextMatches(el, t.Text):
			lastLocator, lastErr = locator, taskerr.Newf(taskerr.KindUIElementNotFound, "element with resource_id %q did not cross-check against text %q, discarding", t.ResourceID, t.Text)
		default:
			bounds, ok := el.Bounds()
			if !ok {
				return selector.Point{}, locator, taskerr.Newf(taskerr.KindUIElementNotFound, "element with resource_id %q has no bounds", t.ResourceID)
			}
			center := bounds.Center()
			return selector.Point{X: center.X, Y: center.Y}, locator, nil
		}
	}
	if t.Coordinates != nil {
		return *t.Coordinates, selector.Describe("coordinates", t), nil
	}
	if t.Text != "" {
		locator := selector.Describe("text", t)
		el := hierarchy.FindByText(elements, t.Text, t.TextIndex)
		if el == nil {
			lastLocator, lastErr = locator, taskerr.Newf(taskerr.KindUIElementNotFound, "element with text %q not found", t.Text)
		} else {
			bounds, ok := el.Bounds()
			if !ok {
				return selector.Point{}, locator, taskerr.Newf(taskerr.KindUIElementNotFound, "element with text %q has no bounds", t.Text)
			}
			center := bounds.Center()
			return selector.Point{X: center.X, Y: center.Y}, locator, nil
		}
	}
	if lastErr != nil {
		return selector.Point{}, lastLocator, lastErr
	}
	return selector.Point{}, "", taskerr.Newf(taskerr.KindUIElementNotFound, "no locator provided (resource_id, coordinates, or text required)")
}

// elementTextMatches cross-checks a resource_id match against the text also
// given on the Target (spec.md §4.7 step 1), comparing case-insensitively
// against either the element's visible text or its accessibility text.
func elementTextMatches(el *hierarchy.Element, text string) bool {
	return strings.EqualFold(el.Text, text) || strings.EqualFold(el.AccessibilityText, text)
}

func (e *Executor) tap(ctx context.Context, rawArgs json.RawMessage, elements []*hierarchy.Element, w, h int) (Result, error) {
	var args targetArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	point, locator, err := e.resolveTarget(args.toTarget(), elements, w, h)
	if err != nil {
		return Result{Content: err.Error(), IsError: true}, nil
	}
	if err := e.Controller.Tap(ctx, point.X, point.Y); err != nil {
		return Result{}, withLocator(err, locator)
	}
	return Result{Content: fmt.Sprintf("Tapped successfully (%s)", locator)}, nil
}

func (e *Executor) longPress(ctx context.Context, rawArgs json.RawMessage, elements []*hierarchy.Element, w, h int) (Result, error) {
	var args targetArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	point, locator, err := e.resolveTarget(args.toTarget(), elements, w, h)
	if err != nil {
		return Result{Content: err.Error(), IsError: true}, nil
	}
	if err := e.Controller.LongPress(ctx, point.X, point.Y, time.Second); err != nil {
		return Result{}, err
	}
	return Result{Content: fmt.Sprintf("Long-pressed successfully (%s)", locator)}, nil
}

type swipeArgs struct {
	Direction     string   `json:"direction,omitempty"`
	StartX        *int     `json:"start_x,omitempty"`
	StartY        *int     `json:"start_y,omitempty"`
	EndX          *int     `json:"end_x,omitempty"`
	EndY          *int     `json:"end_y,omitempty"`
	StartXPercent *float64 `json:"start_x_percent,omitempty"`
	StartYPercent *float64 `json:"start_y_percent,omitempty"`
	EndXPercent   *float64 `json:"end_x_percent,omitempty"`
	EndYPercent   *float64 `json:"end_y_percent,omitempty"`
	DurationMS    int      `json:"duration_ms,omitempty"`
}

func (e *Executor) swipe(ctx context.Context, rawArgs json.RawMessage, w, h int) (Result, error) {
	var args swipeArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}

	req := selector.SwipeRequest{DurationMS: args.DurationMS}
	switch {
	case args.Direction != "":
		req.Mode = selector.SwipeByDirection
		req.Direction = selector.Direction(args.Direction)
	case args.StartX != nil && args.EndX != nil:
		req.Mode = selector.SwipeByCoordinates
		req.StartCoordinates = selector.Point{X: *args.StartX, Y: *args.StartY}
		req.EndCoordinates = selector.Point{X: *args.EndX, Y: *args.EndY}
	case args.StartXPercent != nil && args.EndXPercent != nil:
		req.Mode = selector.SwipeByPercent
		req.StartPercent = selector.PercentPoint{XPercent: *args.StartXPercent, YPercent: *args.StartYPercent}
		req.EndPercent = selector.PercentPoint{XPercent: *args.EndXPercent, YPercent: *args.EndYPercent}
	default:
		return Result{Content: "swipe requires direction, coordinates, or percentages", IsError: true}, nil
	}
	if err := req.Validate(); err != nil {
		return Result{Content: err.Error(), IsError: true}, nil
	}

	start, end, ok := req.ResolveCoordinates(w, h)
	if !ok {
		// Direction-mode swipes resolve against screen bounds here, since
		// selector.SwipeRequest has no device-dimension concept of "near edge".
		start, end = resolveDirectionSwipe(req.Direction, w, h)
	}
	if err := e.Controller.Swipe(ctx, start.X, start.Y, end.X, end.Y, time.Duration(req.Duration())*time.Millisecond); err != nil {
		return Result{}, err
	}
	return Result{Content: "Swiped successfully"}, nil
}

// resolveDirectionSwipe translates a cardinal direction into a start/end
// pixel pair: a swipe UP drags content upward (finger moves from low to
// high on screen), mirroring the Maestro-bridge convention also used by
// run_flow's {"swipe": {"direction": ...}} step.
func resolveDirectionSwipe(dir selector.Direction, w, h int) (start, end selector.Point) {
	cx, cy := w/2, h/2
	const nearEdge, farEdge = 0.8, 0.2
	switch dir {
	case selector.DirectionUp:
		return selector.Point{X: cx, Y: int(float64(h) * nearEdge)}, selector.Point{X: cx, Y: int(float64(h) * farEdge)}
	case selector.DirectionDown:
		return selector.Point{X: cx, Y: int(float64(h) * farEdge)}, selector.Point{X: cx, Y: int(float64(h) * nearEdge)}
	case selector.DirectionLeft:
		return selector.Point{X: int(float64(w) * nearEdge), Y: cy}, selector.Point{X: int(float64(w) * farEdge), Y: cy}
	case selector.DirectionRight:
		return selector.Point{X: int(float64(w) * farEdge), Y: cy}, selector.Point{X: int(float64(w) * nearEdge), Y: cy}
	default:
		return selector.Point{X: cx, Y: cy}, selector.Point{X: cx, Y: cy}
	}
}

type inputTextArgs struct {
	Text string `json:"text"`
	targetArgs
}

func (e *Executor) focusAndInputText(ctx context.Context, rawArgs json.RawMessage, elements []*hierarchy.Element, w, h int) (Result, error) {
	var args inputTextArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	target := args.targetArgs.toTarget()
	if target.HasAnyLocator() {
		point, locator, err := e.resolveTarget(target, elements, w, h)
		if err != nil {
			return Result{Content: err.Error(), IsError: true}, nil
		}
		if err := e.Controller.Tap(ctx, point.X, point.Y); err != nil {
			return Result{}, withLocator(err, locator)
		}
	}
	if err := e.Controller.TypeText(ctx, args.Text); err != nil {
		return Result{}, err
	}
	return Result{Content: fmt.Sprintf("Typed %q successfully", args.Text)}, nil
}

func (e *Executor) focusAndClearText(ctx context.Context, rawArgs json.RawMessage, elements []*hierarchy.Element, w, h int) (Result, error) {
	var args targetArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	target := args.toTarget()
	if target.HasAnyLocator() {
		point, locator, err := e.resolveTarget(target, elements, w, h)
		if err != nil {
			return Result{Content: err.Error(), IsError: true}, nil
		}
		if err := e.Controller.Tap(ctx, point.X, point.Y); err != nil {
			return Result{}, withLocator(err, locator)
		}
	}
	for i := 0; i < 64; i++ {
		if err := e.Controller.Backspace(ctx); err != nil {
			return Result{}, err
		}
	}
	return Result{Content: "Cleared text successfully"}, nil
}

func (e *Executor) eraseOneChar(ctx context.Context) (Result, error) {
	if err := e.Controller.Backspace(ctx); err != nil {
		return Result{}, err
	}
	return Result{Content: "Erased one character"}, nil
}

type appNameArgs struct {
	AppName string `json:"app_name,omitempty"`
}

func (e *Executor) launchApp(ctx context.Context, rawArgs json.RawMessage) (Result, error) {
	var args appNameArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	packageID, err := e.findPackage(ctx, args.AppName)
	if err != nil {
		return Result{}, err
	}
	if err := e.Controller.LaunchApp(ctx, packageID); err != nil {
		return Result{}, err
	}
	return Result{Content: fmt.Sprintf("Launched %s", packageID)}, nil
}

func (e *Executor) stopApp(ctx context.Context, rawArgs json.RawMessage) (Result, error) {
	var args appNameArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	packageID := ""
	if args.AppName != "" {
		resolved, err := e.findPackage(ctx, args.AppName)
		if err != nil {
			return Result{}, err
		}
		packageID = resolved
	}
	if err := e.Controller.StopApp(ctx, packageID); err != nil {
		return Result{}, err
	}
	return Result{Content: "Stopped app successfully"}, nil
}

// findPackage resolves a human app name to a package id via the Hopper
// agent, returning PackageNotFound when resolution fails (spec.md §8
// testable property #3), grounded on tools/mobile/launch_app.py's
// find_package().
func (e *Executor) findPackage(ctx context.Context, appName string) (string, error) {
	installed, err := e.Packages.ListPackages(ctx)
	if err != nil {
		return "", err
	}
	packageID, err := e.Resolver.ResolvePackage(ctx, appName, installed)
	if err != nil || packageID == "" {
		return "", taskerr.Newf(taskerr.KindPackageNotFound, "package not found for app %q", appName)
	}
	return packageID, nil
}

type urlArgs struct {
	URL string `json:"url"`
}

func (e *Executor) openLink(ctx context.Context, rawArgs json.RawMessage) (Result, error) {
	var args urlArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	if err := e.Controller.OpenLink(ctx, args.URL); err != nil {
		return Result{}, err
	}
	return Result{Content: fmt.Sprintf("Opened %s", args.URL)}, nil
}

func (e *Executor) back(ctx context.Context) (Result, error) {
	if err := e.Controller.Back(ctx); err != nil {
		return Result{}, err
	}
	return Result{Content: "Pressed back"}, nil
}

type keyArgs struct {
	Key string `json:"key"`
}

func (e *Executor) pressKey(ctx context.Context, rawArgs json.RawMessage) (Result, error) {
	var args keyArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	if err := e.Controller.PressKey(ctx, device.Key(args.Key)); err != nil {
		return Result{}, err
	}
	return Result{Content: fmt.Sprintf("Pressed %s", args.Key)}, nil
}

type delayArgs struct {
	DelayMS int `json:"delay_ms"`
}

func (e *Executor) waitForDelay(ctx context.Context, rawArgs json.RawMessage) (Result, error) {
	var args delayArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, taskerr.New(taskerr.KindUIElementNotFound, err)
	}
	select {
	case <-time.After(time.Duration(args.DelayMS) * time.Millisecond):
		return Result{Content: "Waited successfully"}, nil
	case <-ctx.Done():
		return Result{}, taskerr.New(taskerr.KindCancelled, ctx.Err())
	}
}
