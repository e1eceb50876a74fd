package device

import (
	"context"
	"time"

	"github.com/x7722/mobile-use/internal/hierarchy"
	"github.com/x7722/mobile-use/internal/taskerr"
)

// Fallback composes a preferred Controller with a secondary one, routing
// every call to Primary first and retrying on Secondary only when Primary
// fails with KindDeviceUnavailable or KindDeviceCommand — the "native first,
// bridge on absence or failure" ordering of spec.md §4.7. Secondary may be
// nil, in which case Fallback behaves exactly like Primary.
type Fallback struct {
	Primary   Controller
	Secondary Controller
}

var _ Controller = (*Fallback)(nil)

func (f *Fallback) shouldRetry(err error) bool {
	if err == nil || f.Secondary == nil {
		return false
	}
	return taskerr.Is(err, taskerr.KindDeviceUnavailable) || taskerr.Is(err, taskerr.KindDeviceCommand)
}

func (f *Fallback) Tap(ctx context.Context, x, y int) error {
	err := f.Primary.Tap(ctx, x, y)
	if f.shouldRetry(err) {
		return f.Secondary.Tap(ctx, x, y)
	}
	return err
}

func (f *Fallback) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	err := f.Primary.LongPress(ctx, x, y, duration)
	if f.shouldRetry(err) {
		return f.Secondary.LongPress(ctx, x, y, duration)
	}
	return err
}

func (f *Fallback) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	err := f.Primary.Swipe(ctx, x1, y1, x2, y2, duration)
	if f.shouldRetry(err) {
		return f.Secondary.Swipe(ctx, x1, y1, x2, y2, duration)
	}
	return err
}

func (f *Fallback) TypeText(ctx context.Context, text string) error {
	err := f.Primary.TypeText(ctx, text)
	if f.shouldRetry(err) {
		return f.Secondary.TypeText(ctx, text)
	}
	return err
}

func (f *Fallback) PressKey(ctx context.Context, key Key) error {
	err := f.Primary.PressKey(ctx, key)
	if f.shouldRetry(err) {
		return f.Secondary.PressKey(ctx, key)
	}
	return err
}

func (f *Fallback) Backspace(ctx context.Context) error {
	err := f.Primary.Backspace(ctx)
	if f.shouldRetry(err) {
		return f.Secondary.Backspace(ctx)
	}
	return err
}

func (f *Fallback) Back(ctx context.Context) error {
	err := f.Primary.Back(ctx)
	if f.shouldRetry(err) {
		return f.Secondary.Back(ctx)
	}
	return err
}

func (f *Fallback) LaunchApp(ctx context.Context, packageID string) error {
	err := f.Primary.LaunchApp(ctx, packageID)
	if f.shouldRetry(err) {
		return f.Secondary.LaunchApp(ctx, packageID)
	}
	return err
}

func (f *Fallback) StopApp(ctx context.Context, packageID string) error {
	err := f.Primary.StopApp(ctx, packageID)
	if f.shouldRetry(err) {
		return f.Secondary.StopApp(ctx, packageID)
	}
	return err
}

func (f *Fallback) OpenLink(ctx context.Context, url string) error {
	err := f.Primary.OpenLink(ctx, url)
	if f.shouldRetry(err) {
		return f.Secondary.OpenLink(ctx, url)
	}
	return err
}

func (f *Fallback) ScreenData(ctx context.Context) (ScreenData, error) {
	data, err := f.Primary.ScreenData(ctx)
	if f.shouldRetry(err) {
		return f.Secondary.ScreenData(ctx)
	}
	return data, err
}

func (f *Fallback) RichHierarchy(ctx context.Context) ([]*hierarchy.Element, error) {
	elements, err := f.Primary.RichHierarchy(ctx)
	if f.shouldRetry(err) {
		return f.Secondary.RichHierarchy(ctx)
	}
	return elements, err
}

func (f *Fallback) FocusedApp(ctx context.Context) (FocusedApp, error) {
	app, err := f.Primary.FocusedApp(ctx)
	if f.shouldRetry(err) {
		return f.Secondary.FocusedApp(ctx)
	}
	return app, err
}

func (f *Fallback) DeviceDate(ctx context.Context) (string, error) {
	date, err := f.Primary.DeviceDate(ctx)
	if f.shouldRetry(err) {
		return f.Secondary.DeviceDate(ctx)
	}
	return date, err
}
