// Package contextor implements the Contextor agent node, grounded on
// agents/contextor/contextor.py: it refreshes the device observation fields
// (UI hierarchy, screen size, focused app, device date) via three
// independent fetches that have no cross-dependency (spec.md §4.4). The
// fetches run concurrently over plain sync.WaitGroup, since no pack
// repository imports golang.org/x/sync/errgroup (DESIGN.md stdlib
// exception).
package contextor

import (
	"context"
	"sync"

	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/taskerr"
)

// Node builds the Contextor graph.Node against controller.
func Node(controller device.Controller) func(ctx context.Context, s *state.State) (state.Delta, error) {
	return func(ctx context.Context, s *state.State) (state.Delta, error) {
		var (
			wg         sync.WaitGroup
			screen     device.ScreenData
			screenErr  error
			focused    device.FocusedApp
			focusedErr error
			dateStr    string
			dateErr    error
		)

		wg.Add(3)
		go func() {
			defer wg.Done()
			screen, screenErr = controller.ScreenData(ctx)
		}()
		go func() {
			defer wg.Done()
			focused, focusedErr = controller.FocusedApp(ctx)
		}()
		go func() {
			defer wg.Done()
			dateStr, dateErr = controller.DeviceDate(ctx)
		}()
		wg.Wait()

		if screenErr != nil {
			return state.Delta{}, taskerr.New(taskerr.KindDeviceUnavailable, screenErr)
		}

		delta := state.Delta{
			LatestUIHierarchy: screen.Elements,
			ScreenSize:        &state.ScreenSize{Width: screen.Width, Height: screen.Height},
		}
		if screen.Base64PNG != "" {
			delta.LatestScreenshot = &screen.Base64PNG
		}

		// Focused-app and device-date fetches are best-effort observations:
		// losing them doesn't block the loop, so failures are recorded as
		// thoughts rather than propagated.
		var thoughts []string
		if focusedErr == nil {
			delta.FocusedAppInfo = &state.FocusedAppInfo{PackageID: focused.PackageID, ActivityName: focused.ActivityName}
		} else {
			thoughts = append(thoughts, "contextor: could not read focused app: "+focusedErr.Error())
		}
		if dateErr == nil {
			delta.DeviceDate = &dateStr
		} else {
			thoughts = append(thoughts, "contextor: could not read device date: "+dateErr.Error())
		}
		delta.AgentsThoughts = thoughts

		return state.Sanitize("contextor", delta), nil
	}
}
