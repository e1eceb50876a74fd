package taskerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorStringWithAndWithoutLocator(t *testing.T) {
	plain := New(KindDeviceCommand, errors.New("adb shell failed"))
	require.Equal(t, "device_command: adb shell failed", plain.Error())

	located := plain.WithLocator("resource_id='login'")
	require.Equal(t, "device_command: adb shell failed (last locator: resource_id='login')", located.Error())
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(KindPackageNotFound, "app %q not found among %d packages", "Notes", 12)
	require.Equal(t, `package_not_found: app "Notes" not found among 12 packages`, err.Error())
}

func TestUnwrapExposesUnderlyingError(t *testing.T) {
	inner := errors.New("boom")
	err := New(KindLLMFailure, inner)
	require.ErrorIs(t, err, inner)
}

func TestIsMatchesWrappedKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(KindUIElementNotFound, errors.New("no match")))
	require.True(t, Is(err, KindUIElementNotFound))
	require.False(t, Is(err, KindDeviceCommand))
	require.False(t, Is(errors.New("plain"), KindDeviceCommand))
}

func TestFatalKinds(t *testing.T) {
	require.True(t, Fatal(KindPlanningError))
	require.True(t, Fatal(KindProfileNotFound))
	require.True(t, Fatal(KindBudgetExhausted))
	require.True(t, Fatal(KindCancelled))

	require.False(t, Fatal(KindDeviceUnavailable))
	require.False(t, Fatal(KindDeviceCommand))
	require.False(t, Fatal(KindUIElementNotFound))
	require.False(t, Fatal(KindLLMFailure))
	require.False(t, Fatal(KindPackageNotFound))
}
