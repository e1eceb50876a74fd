package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/device"
)

type fakeADB struct {
	commands []string
	err      error
}

func (f *fakeADB) Shell(ctx context.Context, serial, command string) (string, error) {
	f.commands = append(f.commands, command)
	if f.err != nil {
		return "", f.err
	}
	return "", nil
}

func TestTypeTextSplitsOnNewline(t *testing.T) {
	adb := &fakeADB{}
	c := &Controller{ADB: adb, Serial: "emulator-5554"}
	require.NoError(t, c.TypeText(context.Background(), "hello\nworld"))
	require.Equal(t, []string{
		"input text 'hello'",
		"input keyevent KEYCODE_ENTER",
		"input text 'world'",
	}, adb.commands)
}

func TestTypeTextEscapesSpacesAndQuotes(t *testing.T) {
	adb := &fakeADB{}
	c := &Controller{ADB: adb, Serial: "emulator-5554"}
	require.NoError(t, c.TypeText(context.Background(), "don't stop"))
	require.Equal(t, []string{`input text 'don'"'"'t%sstop'`}, adb.commands)
}

func TestFocusedAppParsesCurrentFocus(t *testing.T) {
	adb := &fakeADB{}
	adb.Shell(context.Background(), "", "")
	adb.commands = nil
	c := &Controller{ADB: &stubShell{out: "  mCurrentFocus=Window{abc u0 com.example.app/com.example.app.MainActivity}"}, Serial: "x"}
	app, err := c.FocusedApp(context.Background())
	require.NoError(t, err)
	require.Equal(t, "com.example.app", app.PackageID)
	require.Equal(t, "com.example.app.MainActivity", app.ActivityName)
}

func TestListPackagesParsesFlagFOutput(t *testing.T) {
	c := &Controller{ADB: &stubShell{out: "package:/data/app/com.example.app-1/base.apk=com.example.app\npackage:/system/app/Settings/Settings.apk=com.android.settings\n"}, Serial: "x"}
	packages, err := c.ListPackages(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"com.example.app", "com.android.settings"}, packages)
}

func TestPressKeyUnsupportedKey(t *testing.T) {
	c := &Controller{ADB: &stubShell{}, Serial: "x"}
	err := c.PressKey(context.Background(), device.Key("Menu"))
	require.Error(t, err)
}

type stubShell struct {
	out string
	err error
}

func (s *stubShell) Shell(ctx context.Context, serial, command string) (string, error) {
	return s.out, s.err
}
