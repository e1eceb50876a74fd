// Package device defines the uniform, platform-transparent device-control
// API described in spec.md §4.7, with two backends: a native ADB-shell
// backend for Android, and an HTTP bridge backend for iOS (or Android
// fallback). Order of preference is native first, bridge on absence or
// failure of the native path.
package device

import (
	"context"
	"time"

	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/selector"
)

// Key is a platform-independent key event.
type Key string

const (
	KeyEnter Key = "Enter"
	KeyHome  Key = "Home"
	KeyBack  Key = "Back"
)

// ScreenData is the uniform observation returned by a screen fetch,
// mirroring spec.md §6 "Screen API" response shape.
type ScreenData struct {
	Elements  []*hierarchy.Element
	Width     int
	Height    int
	Base64PNG string
	Platform  string
}

// Controller is the uniform tap/swipe/type/key/app-launch API consumed by
// the tool layer. Fallback composes a native and a bridge Controller,
// trying the native backend first and falling back to the bridge backend on
// failure.
type Controller interface {
	// Tap taps the pixel coordinate (x, y). Callers resolve
	// Target fallback chains before calling Tap; Controller itself performs
	// no selector-resolution, only pixel-level device I/O.
	Tap(ctx context.Context, x, y int) error

	// LongPress presses and holds at (x, y). The native backend simulates it
	// with a same-point swipe lasting at least 1000ms; the bridge backend
	// sends a longPressOn step.
	LongPress(ctx context.Context, x, y int, duration time.Duration) error

	// Swipe drags from (x1,y1) to (x2,y2) over duration.
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error

	// TypeText enters literal text. The native backend splits on '\n'/'\t'
	// to emit KeyEnter/tab key events between segments instead of passing
	// them as literal characters; the bridge backend sends the whole text in
	// one inputText step.
	TypeText(ctx context.Context, text string) error

	// PressKey issues a single named key event.
	PressKey(ctx context.Context, key Key) error

	// Backspace issues a single backspace key event.
	Backspace(ctx context.Context) error

	// Back issues the platform back action.
	Back(ctx context.Context) error

	// LaunchApp starts the app identified by packageID (Android package name
	// or iOS bundle id).
	LaunchApp(ctx context.Context, packageID string) error

	// StopApp force-stops packageID, or the current foreground app when
	// packageID is empty.
	StopApp(ctx context.Context, packageID string) error

	// OpenLink opens a deep link or URL via the platform intent system.
	OpenLink(ctx context.Context, url string) error

	// ScreenData fetches the current screen observation (elements,
	// dimensions, screenshot).
	ScreenData(ctx context.Context) (ScreenData, error)

	// RichHierarchy fetches a richer hierarchy used only for focus-state
	// checks by focus_and_input_text (SPEC_FULL.md §3 supplemental data).
	RichHierarchy(ctx context.Context) ([]*hierarchy.Element, error)

	// FocusedApp returns the current foreground app identity.
	FocusedApp(ctx context.Context) (FocusedApp, error)

	// DeviceDate returns the device's current date/time as a text string.
	DeviceDate(ctx context.Context) (string, error)
}

// FocusedApp identifies the foreground app and, on Android, its current
// activity.
type FocusedApp struct {
	PackageID    string
	ActivityName string
}

// ResolvePercent converts a percent-kind selector.Selector into a pixel
// coordinate pair using the current screen size.
func ResolvePercent(sel selector.Selector, width, height int) (x, y int) {
	resolved := sel.Resolve(width, height)
	return resolved.X, resolved.Y
}
