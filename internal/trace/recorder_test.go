package trace

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/state"
)

func tinyPNGBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRecordSnapshotWritesScreenshotAndThought(t *testing.T) {
	root := t.TempDir()
	r := NewRecorder(root, nil)

	snap := state.Snapshot{
		LatestScreenshot: tinyPNGBase64(t),
		AgentsThoughts:   []string{"first", "tapped button"},
	}
	r.RecordSnapshot(context.Background(), "task-1", snap)

	dir := filepath.Join(root, "task-1")
	require.FileExists(t, filepath.Join(dir, "step-0000.jpg"))
	thoughts, err := os.ReadFile(filepath.Join(dir, "thoughts.log"))
	require.NoError(t, err)
	require.Contains(t, string(thoughts), "tapped button")
}

func TestRecordSnapshotIncrementsStepPerTask(t *testing.T) {
	root := t.TempDir()
	r := NewRecorder(root, nil)
	png64 := tinyPNGBase64(t)

	r.RecordSnapshot(context.Background(), "task-1", state.Snapshot{LatestScreenshot: png64})
	r.RecordSnapshot(context.Background(), "task-1", state.Snapshot{LatestScreenshot: png64})

	dir := filepath.Join(root, "task-1")
	require.FileExists(t, filepath.Join(dir, "step-0000.jpg"))
	require.FileExists(t, filepath.Join(dir, "step-0001.jpg"))
}

func TestRecordMessageAppendsJSONLine(t *testing.T) {
	root := t.TempDir()
	r := NewRecorder(root, nil)

	r.RecordMessage(context.Background(), "task-2", state.Message{Role: state.RoleTool, Text: "tap ok"})
	r.RecordMessage(context.Background(), "task-2", state.Message{Role: state.RoleTool, Text: "swipe ok"})

	data, err := os.ReadFile(filepath.Join(root, "task-2", "messages.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "tap ok")
	require.Contains(t, string(data), "swipe ok")
}

func TestWriteOutputWritesFile(t *testing.T) {
	root := t.TempDir()
	r := NewRecorder(root, nil)

	require.NoError(t, r.WriteOutput("task-3", "final answer"))
	data, err := os.ReadFile(filepath.Join(root, "task-3", "output.txt"))
	require.NoError(t, err)
	require.Equal(t, "final answer", string(data))
}

func TestRecordSnapshotSkipsWriteWhenNoScreenshot(t *testing.T) {
	root := t.TempDir()
	r := NewRecorder(root, nil)

	r.RecordSnapshot(context.Background(), "task-4", state.Snapshot{})
	entries, err := os.ReadDir(filepath.Join(root, "task-4"))
	require.NoError(t, err)
	require.Empty(t, entries)
}
