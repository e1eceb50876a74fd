// Package native implements device.Controller for Android using direct ADB
// shell commands, grounded on controllers/mobile_command_controller.py and
// controllers/platform_specific_commands_controller.py from the original
// Python source.
package native

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/taskerr"
)

// ADBClient abstracts the Android debug-shell transport. Its own internals
// (the debug protocol) are an out-of-scope collaborator per spec.md §1; we
// depend only on this narrow interface.
type ADBClient interface {
	// Shell runs an opaque shell command on the device identified by serial
	// and returns its stdout.
	Shell(ctx context.Context, serial, command string) (string, error)
}

// HierarchyFetcher fetches the UI hierarchy and screen dimensions. Screen
// capture is delegated to the device-hardware bridge even on the native
// backend, per spec.md §4.7 "prefer native ... when available; fallback to
// Screen API" — UIAutomator-equivalent capture is not reimplemented here.
type HierarchyFetcher interface {
	ScreenData(ctx context.Context) (device.ScreenData, error)
	RichHierarchy(ctx context.Context) ([]*hierarchy.Element, error)
}

// Controller implements device.Controller over ADB shell commands for a
// single device serial.
type Controller struct {
	ADB    ADBClient
	Serial string

	// Screen delegates screen/hierarchy capture to the bridge-backed
	// implementation, since ADB has no built-in screenshot streaming
	// equivalent to the bridge's /screen-info endpoint.
	Screen HierarchyFetcher
}

var _ device.Controller = (*Controller)(nil)

func (c *Controller) Tap(ctx context.Context, x, y int) error {
	_, err := c.shell(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

func (c *Controller) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	if duration < time.Second {
		duration = time.Second
	}
	ms := duration.Milliseconds()
	_, err := c.shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x, y, x, y, ms))
	return err
}

func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	ms := duration.Milliseconds()
	_, err := c.shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, ms))
	return err
}

// TypeText types text via `input text`, escaping per spec.md §4.7: spaces
// become %s, the payload is single-quote escaped, and newlines/tabs are not
// passed literally — they are split into segments joined by KEYCODE_ENTER
// (newline) or keycode 61 (tab) key events.
func (c *Controller) TypeText(ctx context.Context, text string) error {
	segments, seps := splitOnControlChars(text)
	for i, seg := range segments {
		if seg != "" {
			if _, err := c.shell(ctx, fmt.Sprintf("input text '%s'", escapeForShell(seg))); err != nil {
				return err
			}
		}
		if i < len(seps) {
			var err error
			if seps[i] == '\n' {
				err = c.PressKey(ctx, device.KeyEnter)
			} else {
				_, err = c.shell(ctx, "input keyevent 61")
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Controller) PressKey(ctx context.Context, key device.Key) error {
	code, ok := keycodes[key]
	if !ok {
		return taskerr.Newf(taskerr.KindDeviceCommand, "native: unsupported key %q", key)
	}
	_, err := c.shell(ctx, "input keyevent "+code)
	return err
}

func (c *Controller) Backspace(ctx context.Context) error {
	_, err := c.shell(ctx, "input keyevent KEYCODE_DEL")
	return err
}

func (c *Controller) Back(ctx context.Context) error {
	return c.PressKey(ctx, "Back")
}

func (c *Controller) LaunchApp(ctx context.Context, packageID string) error {
	_, err := c.shell(ctx, fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", packageID))
	return err
}

func (c *Controller) StopApp(ctx context.Context, packageID string) error {
	if packageID == "" {
		current, err := c.FocusedApp(ctx)
		if err != nil {
			return err
		}
		packageID = current.PackageID
	}
	if packageID == "" {
		return taskerr.Newf(taskerr.KindDeviceCommand, "native: no foreground app to stop")
	}
	_, err := c.shell(ctx, "am force-stop "+packageID)
	return err
}

func (c *Controller) OpenLink(ctx context.Context, url string) error {
	_, err := c.shell(ctx, fmt.Sprintf("am start -a android.intent.action.VIEW -d %s", escapeForShell(url)))
	return err
}

func (c *Controller) ScreenData(ctx context.Context) (device.ScreenData, error) {
	return c.Screen.ScreenData(ctx)
}

func (c *Controller) RichHierarchy(ctx context.Context) ([]*hierarchy.Element, error) {
	return c.Screen.RichHierarchy(ctx)
}

var focusPattern = regexp.MustCompile(`mCurrentFocus=.*?\s([^\s/]+)/([^\s}]+)`)

func (c *Controller) FocusedApp(ctx context.Context) (device.FocusedApp, error) {
	out, err := c.shell(ctx, "dumpsys window | grep mCurrentFocus")
	if err != nil {
		return device.FocusedApp{}, err
	}
	m := focusPattern.FindStringSubmatch(out)
	if m == nil {
		return device.FocusedApp{}, nil
	}
	return device.FocusedApp{PackageID: m[1], ActivityName: strings.TrimSuffix(m[2], "}")}, nil
}

func (c *Controller) DeviceDate(ctx context.Context) (string, error) {
	return c.shell(ctx, "date")
}

// ListPackages returns the installed package ids in the order pm lists them,
// used by the Hopper-backed launch_app tool to resolve a human-readable app
// name (spec.md §4.6 launch_app).
func (c *Controller) ListPackages(ctx context.Context) ([]string, error) {
	out, err := c.shell(ctx, "pm list packages -f")
	if err != nil {
		return nil, err
	}
	var packages []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if idx := strings.LastIndex(line, "="); idx >= 0 {
			packages = append(packages, strings.TrimSpace(line[idx+1:]))
		}
	}
	return packages, nil
}

func (c *Controller) shell(ctx context.Context, cmd string) (string, error) {
	out, err := c.ADB.Shell(ctx, c.Serial, cmd)
	if err != nil {
		return "", taskerr.New(taskerr.KindDeviceCommand, fmt.Errorf("adb shell %q: %w", cmd, err))
	}
	return out, nil
}

var keycodes = map[device.Key]string{
	device.KeyEnter: "KEYCODE_ENTER",
	device.KeyHome:  "KEYCODE_HOME",
	device.KeyBack:  "KEYCODE_BACK",
}

// escapeForShell single-quote-escapes a payload for embedding inside single
// quotes in a shell command, per spec.md §4.7.
func escapeForShell(s string) string {
	s = strings.ReplaceAll(s, " ", "%s")
	s = strings.ReplaceAll(s, "'", `'"'"'`)
	return s
}

// splitOnControlChars splits text on '\n' and '\t', returning the segments
// and the ordered list of separators encountered between them.
func splitOnControlChars(text string) (segments []string, seps []rune) {
	var cur strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\t' {
			segments = append(segments, cur.String())
			seps = append(seps, r)
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	segments = append(segments, cur.String())
	return segments, seps
}
