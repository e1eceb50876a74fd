// Package bridge implements device.Controller against the hardware bridge
// HTTP API, grounded on controllers/mobile_command_controller.py's
// `hw_bridge_client.post("run-command", ...)` flow-document protocol and the
// Screen API described in spec.md §6.
package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/taskerr"
)

// Controller implements device.Controller by posting Maestro-style YAML flow
// documents to a hardware bridge's /run-command endpoint and polling its
// screen-info endpoint, per spec.md §4.7/§6.
type Controller struct {
	HTTP    *http.Client
	BaseURL string
	DryRun  bool
	// Platform identifies the device platform reported alongside ScreenData.
	Platform string
}

var _ device.Controller = (*Controller)(nil)

// New returns a Controller with a default HTTP client timeout, grounded on
// the original's HwBridgeClient construction.
func New(baseURL, platform string) *Controller {
	return &Controller{
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Platform: platform,
	}
}

func (c *Controller) Tap(ctx context.Context, x, y int) error {
	return c.runFlow(ctx, flowStep{"tapOn": map[string]any{"point": fmt.Sprintf("%d,%d", x, y)}})
}

func (c *Controller) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	return c.runFlow(ctx, flowStep{"longPressOn": map[string]any{
		"point":    fmt.Sprintf("%d,%d", x, y),
		"duration": duration.Milliseconds(),
	}})
}

func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	return c.runFlow(ctx, flowStep{"swipe": map[string]any{
		"start":    fmt.Sprintf("%d,%d", x1, y1),
		"end":      fmt.Sprintf("%d,%d", x2, y2),
		"duration": duration.Milliseconds(),
	}})
}

func (c *Controller) TypeText(ctx context.Context, text string) error {
	return c.runFlow(ctx, flowStep{"inputText": text})
}

func (c *Controller) PressKey(ctx context.Context, key device.Key) error {
	mapped, ok := keyNames[key]
	if !ok {
		return taskerr.Newf(taskerr.KindDeviceCommand, "bridge: unsupported key %q", key)
	}
	return c.runFlow(ctx, flowStep{"pressKey": mapped})
}

func (c *Controller) Backspace(ctx context.Context) error {
	return c.runFlow(ctx, flowStep{"eraseText": 1})
}

func (c *Controller) Back(ctx context.Context) error {
	return c.runFlow(ctx, flowStep{"back": nil})
}

func (c *Controller) LaunchApp(ctx context.Context, packageID string) error {
	return c.runFlow(ctx, flowStep{"launchApp": map[string]any{"appId": packageID}})
}

func (c *Controller) StopApp(ctx context.Context, packageID string) error {
	step := flowStep{"stopApp": nil}
	if packageID != "" {
		step = flowStep{"stopApp": map[string]any{"appId": packageID}}
	}
	return c.runFlow(ctx, step)
}

func (c *Controller) OpenLink(ctx context.Context, url string) error {
	return c.runFlow(ctx, flowStep{"openLink": url})
}

// flowStep is a single Maestro-style flow command, e.g. {"tapOn": {...}}.
type flowStep map[string]any

type runFlowRequest struct {
	YAML   string `json:"yaml"`
	DryRun bool   `json:"dryRun"`
}

func (c *Controller) runFlow(ctx context.Context, step flowStep) error {
	doc, err := yaml.Marshal([]flowStep{step})
	if err != nil {
		return taskerr.New(taskerr.KindDeviceCommand, fmt.Errorf("bridge: encode flow step: %w", err))
	}
	body, err := json.Marshal(runFlowRequest{YAML: string(doc), DryRun: c.DryRun})
	if err != nil {
		return taskerr.New(taskerr.KindDeviceCommand, fmt.Errorf("bridge: encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/run-command", bytes.NewReader(body))
	if err != nil {
		return taskerr.New(taskerr.KindDeviceCommand, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return taskerr.New(taskerr.KindDeviceUnavailable, fmt.Errorf("bridge: run-command: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return taskerr.Newf(taskerr.KindDeviceCommand, "bridge: run-command returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// screenInfoResponse mirrors the Screen API response shape of spec.md §6.
type screenInfoResponse struct {
	Elements  []*hierarchy.Element `json:"elements"`
	Width     int                  `json:"width"`
	Height    int                  `json:"height"`
	Base64PNG string               `json:"base64"`
}

func (c *Controller) ScreenData(ctx context.Context) (device.ScreenData, error) {
	var info screenInfoResponse
	if err := c.get(ctx, "/screen-info", &info); err != nil {
		return device.ScreenData{}, err
	}
	return device.ScreenData{
		Elements:  info.Elements,
		Width:     info.Width,
		Height:    info.Height,
		Base64PNG: info.Base64PNG,
		Platform:  c.Platform,
	}, nil
}

func (c *Controller) RichHierarchy(ctx context.Context) ([]*hierarchy.Element, error) {
	var info screenInfoResponse
	if err := c.get(ctx, "/screen-info?rich=true", &info); err != nil {
		return nil, err
	}
	return info.Elements, nil
}

type focusedAppResponse struct {
	PackageID    string `json:"packageId"`
	ActivityName string `json:"activityName"`
}

func (c *Controller) FocusedApp(ctx context.Context) (device.FocusedApp, error) {
	var resp focusedAppResponse
	if err := c.get(ctx, "/focused-app", &resp); err != nil {
		return device.FocusedApp{}, err
	}
	return device.FocusedApp{PackageID: resp.PackageID, ActivityName: resp.ActivityName}, nil
}

type deviceDateResponse struct {
	Date string `json:"date"`
}

func (c *Controller) DeviceDate(ctx context.Context) (string, error) {
	var resp deviceDateResponse
	if err := c.get(ctx, "/device-date", &resp); err != nil {
		return "", err
	}
	return resp.Date, nil
}

func (c *Controller) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return taskerr.New(taskerr.KindDeviceCommand, err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return taskerr.New(taskerr.KindDeviceUnavailable, fmt.Errorf("bridge: %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return taskerr.Newf(taskerr.KindDeviceCommand, "bridge: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Alive checks the bridge's liveness banner, reporting whether the bridge
// answered with a non-error status.
func (c *Controller) Alive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/banner-message", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 300
}

var keyNames = map[device.Key]string{
	device.KeyEnter: "Enter",
	device.KeyHome:  "Home",
	device.KeyBack:  "Back",
}

// decodeBase64PNG decodes a base64 screenshot payload, failing when it is
// not well-formed base64.
func decodeBase64PNG(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
