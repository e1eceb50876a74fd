// Package session persists task lifecycle records across process restarts,
// grounded on the teacher's runtime/agent/session package. Where the teacher
// tracks chat Sessions and workflow RunMeta, this package tracks a device
// Session (one physical device target) and the TaskRecords that ran against
// it, backing the single-task-owner discipline of internal/task (spec.md §4.8
// "Single-task discipline").
package session

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a device session.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// TaskStatus mirrors the task lifecycle states of spec.md §4.8.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// DeviceSession captures durable device-session lifecycle state: one record
// per physical/emulated device the SDK has been pointed at.
type DeviceSession struct {
	ID        string
	Status    Status
	CreatedAt time.Time
	EndedAt   *time.Time
}

// TaskRecord captures persistent metadata for a single task run, surviving
// process restarts so a crashed runtime can report what it was last doing
// instead of silently forgetting (the teacher's RunMeta equivalent).
type TaskRecord struct {
	TaskID     string
	SessionID  string
	Goal       string
	Status     TaskStatus
	StartedAt  time.Time
	UpdatedAt  time.Time
	Output     string
	FailureErr string
}

// Store persists session lifecycle state and task records. Implementations
// return storage failures as errors rather than dropping writes; redisstore
// survives process restarts, memstore does not. internal/task logs a failed
// write and lets the task continue.
type Store interface {
	CreateSession(ctx context.Context, sessionID string, createdAt time.Time) (DeviceSession, error)
	LoadSession(ctx context.Context, sessionID string) (DeviceSession, error)
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) (DeviceSession, error)

	UpsertTask(ctx context.Context, task TaskRecord) error
	LoadTask(ctx context.Context, taskID string) (TaskRecord, error)
	ListTasksBySession(ctx context.Context, sessionID string, statuses []TaskStatus) ([]TaskRecord, error)
}

var (
	ErrSessionNotFound = errors.New("session: device session not found")
	ErrSessionEnded    = errors.New("session: device session already ended")
	ErrTaskNotFound    = errors.New("session: task record not found")
)
