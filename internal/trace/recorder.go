// Package trace writes a per-task artifact trail to disk: a screenshot per
// step, the executor message transcript, and the running thought log,
// grounded on utils/recorder.py in the original source (SPEC_FULL.md §4.12
// "Trace recording"). GIF assembly from the per-step screenshots is
// explicitly out of scope (spec.md §1 Non-goals).
package trace

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/telemetry"
)

// Recorder persists trace artifacts under Root/<taskID>/. Snapshot and
// message write failures are logged and swallowed so a broken trace
// directory never aborts a running task, mirroring Contextor's best-effort
// observation fetches; WriteOutput returns its error to the caller.
type Recorder struct {
	Root   string
	Logger telemetry.Logger

	mu    sync.Mutex
	steps map[string]int
}

// NewRecorder builds a Recorder rooted at root.
func NewRecorder(root string, logger telemetry.Logger) *Recorder {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Recorder{Root: root, Logger: logger, steps: map[string]int{}}
}

func (r *Recorder) taskDir(taskID string) string {
	return filepath.Join(r.Root, taskID)
}

func (r *Recorder) nextStep(taskID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.steps[taskID]
	r.steps[taskID] = n + 1
	return n
}

// RecordSnapshot writes the step's screenshot (if present) and appends the
// snapshot's latest thought to the task's thought log.
func (r *Recorder) RecordSnapshot(ctx context.Context, taskID string, snap state.Snapshot) {
	dir := r.taskDir(taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Logger.Warn(ctx, "trace: mkdir failed", "task_id", taskID, "error", err.Error())
		return
	}

	step := r.nextStep(taskID)
	if snap.LatestScreenshot != "" {
		if err := r.writeJPEG(dir, step, snap.LatestScreenshot); err != nil {
			r.Logger.Warn(ctx, "trace: screenshot write failed", "task_id", taskID, "error", err.Error())
		}
	}
	if len(snap.AgentsThoughts) > 0 {
		r.appendThought(ctx, dir, snap.AgentsThoughts[len(snap.AgentsThoughts)-1])
	}
}

// RecordMessage appends a single executor message to the task's message log.
func (r *Recorder) RecordMessage(ctx context.Context, taskID string, msg state.Message) {
	dir := r.taskDir(taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Logger.Warn(ctx, "trace: mkdir failed", "task_id", taskID, "error", err.Error())
		return
	}
	if err := r.appendMessage(dir, msg); err != nil {
		r.Logger.Warn(ctx, "trace: message append failed", "task_id", taskID, "error", err.Error())
	}
}

// WriteOutput writes the task's final output to output.txt.
func (r *Recorder) WriteOutput(taskID, output string) error {
	dir := r.taskDir(taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "output.txt"), []byte(output), 0o644)
}

func (r *Recorder) writeJPEG(dir string, step int, base64PNG string) error {
	raw, err := base64.StdEncoding.DecodeString(base64PNG)
	if err != nil {
		return fmt.Errorf("trace: decode screenshot: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("trace: decode image: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("step-%04d.jpg", step)))
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
}

func (r *Recorder) appendMessage(dir string, msg state.Message) error {
	f, err := os.OpenFile(filepath.Join(dir, "messages.json"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

func (r *Recorder) appendThought(ctx context.Context, dir, thought string) {
	f, err := os.OpenFile(filepath.Join(dir, "thoughts.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.Logger.Warn(ctx, "trace: thought log open failed", "error", err.Error())
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s %s\n", time.Now().UTC().Format(time.RFC3339), thought)
}
