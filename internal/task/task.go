// Package task implements the single-task-owner discipline of spec.md §4.8,
// grounded on the Python sdk/agent.py Agent class: only one task may run
// against a device at a time; starting a new one cancels and joins whatever
// task currently holds ownership before the new one proceeds.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/x7722/mobile-use/internal/session"
	"github.com/x7722/mobile-use/internal/state"
	"github.com/x7722/mobile-use/internal/taskerr"
	"github.com/x7722/mobile-use/internal/telemetry"
)

// Status mirrors session.TaskStatus for callers that don't want to import
// the session package directly.
type Status = session.TaskStatus

// Runner executes a single task's graph run to completion, returning the
// final state for output extraction. Implemented by a wired internal/graph
// Runtime + internal/state.State pair (see internal/sdk).
type Runner func(ctx context.Context, taskID, goal string, maxSteps int) (*state.State, error)

// Outputter extracts a task's final output from its terminal state, per
// spec.md §4.8 "Output extraction" (grounded on sdk/agent.py's
// `_extract_output`, backed by internal/agents/outputter).
type Outputter func(ctx context.Context, final *state.State, outputFormat, outputDescription string) (string, error)

// Handle represents ownership of the single in-flight task slot. Callers
// obtain one from Lifecycle.Start; starting another task on the same
// Lifecycle cancels this one and waits for it to finish.
type Handle struct {
	TaskID string
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// Result is the terminal outcome of a task run.
type Result struct {
	Output string
	Err    error
}

// Wait blocks until the task reaches a terminal state and returns its result.
func (h *Handle) Wait() Result {
	<-h.done
	return h.result
}

// Cancel requests cancellation of the running task. It does not block for
// completion; call Wait to observe the terminal result.
func (h *Handle) Cancel() { h.cancel() }

// Lifecycle enforces the single-task-at-a-time discipline for one device
// session: starting a task replaces and joins whatever task was previously
// owned, per spec.md §4.8 and §9 "Single-task discipline".
type Lifecycle struct {
	mu        sync.Mutex
	current   *Handle
	sessionID string
	store     session.Store
	logger    telemetry.Logger
}

// NewLifecycle constructs a Lifecycle backed by store for durability, scoped
// to sessionID (the device session). logger may be nil.
func NewLifecycle(sessionID string, store session.Store, logger telemetry.Logger) *Lifecycle {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Lifecycle{sessionID: sessionID, store: store, logger: logger}
}

// Start cancels and joins any currently owned task, then starts a new one
// running goal via run, finalizing through extractOutput on every terminal
// path (success, failure, or cancellation) where run returned a non-nil
// final state.
func (l *Lifecycle) Start(ctx context.Context, goal string, maxSteps int, run Runner, extractOutput func(*state.State) (string, error)) *Handle {
	l.mu.Lock()
	prev := l.current
	l.mu.Unlock()
	if prev != nil {
		prev.Cancel()
		prev.Wait()
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{TaskID: uuid.NewString(), cancel: cancel, done: make(chan struct{})}

	l.mu.Lock()
	l.current = h
	l.mu.Unlock()

	l.recordStatus(ctx, h.TaskID, goal, session.TaskPending, "", "")

	go func() {
		defer close(h.done)
		l.recordStatus(ctx, h.TaskID, goal, session.TaskRunning, "", "")

		finalState, runErr := run(runCtx, h.TaskID, goal, maxSteps)

		var output string
		var outErr error
		if finalState != nil {
			output, outErr = extractOutput(finalState)
		}

		switch {
		case taskerr.Is(runErr, taskerr.KindCancelled):
			h.result = Result{Output: output, Err: runErr}
			l.recordStatus(ctx, h.TaskID, goal, session.TaskCancelled, output, errString(runErr))
		case runErr != nil:
			h.result = Result{Output: output, Err: runErr}
			l.recordStatus(ctx, h.TaskID, goal, session.TaskFailed, output, errString(runErr))
		case outErr != nil:
			h.result = Result{Output: output, Err: outErr}
			l.recordStatus(ctx, h.TaskID, goal, session.TaskFailed, output, errString(outErr))
		default:
			h.result = Result{Output: output}
			l.recordStatus(ctx, h.TaskID, goal, session.TaskCompleted, output, "")
		}

		l.mu.Lock()
		if l.current == h {
			l.current = nil
		}
		l.mu.Unlock()
	}()

	return h
}

// Current returns the handle for the in-flight task, or nil if none.
func (l *Lifecycle) Current() *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Lifecycle) recordStatus(ctx context.Context, taskID, goal string, status session.TaskStatus, output, failure string) {
	if l.store == nil {
		return
	}
	rec := session.TaskRecord{
		TaskID:     taskID,
		SessionID:  l.sessionID,
		Goal:       goal,
		Status:     status,
		UpdatedAt:  time.Now(),
		Output:     output,
		FailureErr: failure,
	}
	if status == session.TaskRunning {
		rec.StartedAt = rec.UpdatedAt
	}
	if err := l.store.UpsertTask(ctx, rec); err != nil {
		l.logger.Warn(ctx, "task: failed to persist task record", "task_id", taskID, "error", err.Error())
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
