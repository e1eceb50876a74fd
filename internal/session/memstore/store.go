// Package memstore provides an in-memory session.Store, grounded on the
// teacher's runtime/agent/session/inmem package, for tests and local runs
// without a Redis dependency.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/x7722/mobile-use/internal/session"
)

// Store is an in-memory implementation of session.Store, safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]session.DeviceSession
	tasks    map[string]session.TaskRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sessions: make(map[string]session.DeviceSession),
		tasks:    make(map[string]session.TaskRecord),
	}
}

var _ session.Store = (*Store)(nil)

func (s *Store) CreateSession(_ context.Context, sessionID string, createdAt time.Time) (session.DeviceSession, error) {
	if sessionID == "" {
		return session.DeviceSession{}, errors.New("memstore: session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		if existing.Status == session.StatusEnded {
			return session.DeviceSession{}, session.ErrSessionEnded
		}
		return existing, nil
	}
	out := session.DeviceSession{ID: sessionID, Status: session.StatusActive, CreatedAt: createdAt.UTC()}
	s.sessions[sessionID] = out
	return out, nil
}

func (s *Store) LoadSession(_ context.Context, sessionID string) (session.DeviceSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.sessions[sessionID]
	if !ok {
		return session.DeviceSession{}, session.ErrSessionNotFound
	}
	return existing, nil
}

func (s *Store) EndSession(_ context.Context, sessionID string, endedAt time.Time) (session.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[sessionID]
	if !ok {
		return session.DeviceSession{}, session.ErrSessionNotFound
	}
	if existing.Status == session.StatusEnded {
		return existing, nil
	}
	at := endedAt.UTC()
	existing.Status = session.StatusEnded
	existing.EndedAt = &at
	s.sessions[sessionID] = existing
	return existing, nil
}

func (s *Store) UpsertTask(_ context.Context, task session.TaskRecord) error {
	if task.TaskID == "" {
		return errors.New("memstore: task id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tasks[task.TaskID]; ok && !existing.StartedAt.IsZero() && task.StartedAt.IsZero() {
		task.StartedAt = existing.StartedAt
	}
	s.tasks[task.TaskID] = task
	return nil
}

func (s *Store) LoadTask(_ context.Context, taskID string) (session.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return session.TaskRecord{}, session.ErrTaskNotFound
	}
	return task, nil
}

func (s *Store) ListTasksBySession(_ context.Context, sessionID string, statuses []session.TaskStatus) ([]session.TaskRecord, error) {
	var allowed map[session.TaskStatus]struct{}
	if len(statuses) > 0 {
		allowed = make(map[session.TaskStatus]struct{}, len(statuses))
		for _, st := range statuses {
			allowed[st] = struct{}{}
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]session.TaskRecord, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.SessionID != sessionID {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[task.Status]; !ok {
				continue
			}
		}
		out = append(out, task)
	}
	return out, nil
}
