// Package redisstore implements session.Store on top of Redis, grounded on
// the teacher's use of *redis.Client as an injected dependency (see
// features/stream/pulse/clients/pulse/client.go). Device sessions and task
// records are stored as JSON blobs under namespaced keys; ListTasksBySession
// is backed by a Redis set of task ids per session.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/x7722/mobile-use/internal/session"
)

// Store implements session.Store on top of a Redis connection.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New builds a Store. prefix namespaces keys (e.g. "mobileuse:") so the
// connection can be shared with unrelated applications.
func New(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

var _ session.Store = (*Store)(nil)

func (s *Store) sessionKey(id string) string      { return s.prefix + "session:" + id }
func (s *Store) taskKey(id string) string         { return s.prefix + "task:" + id }
func (s *Store) sessionTasksKey(id string) string { return s.prefix + "session-tasks:" + id }

func (s *Store) CreateSession(ctx context.Context, sessionID string, createdAt time.Time) (session.DeviceSession, error) {
	if sessionID == "" {
		return session.DeviceSession{}, fmt.Errorf("redisstore: session id is required")
	}
	existing, err := s.LoadSession(ctx, sessionID)
	if err == nil {
		if existing.Status == session.StatusEnded {
			return session.DeviceSession{}, session.ErrSessionEnded
		}
		return existing, nil
	}
	if err != session.ErrSessionNotFound {
		return session.DeviceSession{}, err
	}
	out := session.DeviceSession{ID: sessionID, Status: session.StatusActive, CreatedAt: createdAt.UTC()}
	if err := s.putSession(ctx, out); err != nil {
		return session.DeviceSession{}, err
	}
	return out, nil
}

func (s *Store) LoadSession(ctx context.Context, sessionID string) (session.DeviceSession, error) {
	raw, err := s.rdb.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return session.DeviceSession{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.DeviceSession{}, fmt.Errorf("redisstore: load session: %w", err)
	}
	var out session.DeviceSession
	if err := json.Unmarshal(raw, &out); err != nil {
		return session.DeviceSession{}, fmt.Errorf("redisstore: decode session: %w", err)
	}
	return out, nil
}

func (s *Store) EndSession(ctx context.Context, sessionID string, endedAt time.Time) (session.DeviceSession, error) {
	existing, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return session.DeviceSession{}, err
	}
	if existing.Status == session.StatusEnded {
		return existing, nil
	}
	at := endedAt.UTC()
	existing.Status = session.StatusEnded
	existing.EndedAt = &at
	if err := s.putSession(ctx, existing); err != nil {
		return session.DeviceSession{}, err
	}
	return existing, nil
}

func (s *Store) putSession(ctx context.Context, sess session.DeviceSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redisstore: encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.sessionKey(sess.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: store session: %w", err)
	}
	return nil
}

func (s *Store) UpsertTask(ctx context.Context, task session.TaskRecord) error {
	if task.TaskID == "" {
		return fmt.Errorf("redisstore: task id is required")
	}
	if existing, err := s.LoadTask(ctx, task.TaskID); err == nil && !existing.StartedAt.IsZero() && task.StartedAt.IsZero() {
		task.StartedAt = existing.StartedAt
	}
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("redisstore: encode task: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.taskKey(task.TaskID), raw, 0)
	if task.SessionID != "" {
		pipe.SAdd(ctx, s.sessionTasksKey(task.SessionID), task.TaskID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: store task: %w", err)
	}
	return nil
}

func (s *Store) LoadTask(ctx context.Context, taskID string) (session.TaskRecord, error) {
	raw, err := s.rdb.Get(ctx, s.taskKey(taskID)).Bytes()
	if err == redis.Nil {
		return session.TaskRecord{}, session.ErrTaskNotFound
	}
	if err != nil {
		return session.TaskRecord{}, fmt.Errorf("redisstore: load task: %w", err)
	}
	var out session.TaskRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return session.TaskRecord{}, fmt.Errorf("redisstore: decode task: %w", err)
	}
	return out, nil
}

func (s *Store) ListTasksBySession(ctx context.Context, sessionID string, statuses []session.TaskStatus) ([]session.TaskRecord, error) {
	ids, err := s.rdb.SMembers(ctx, s.sessionTasksKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list session tasks: %w", err)
	}
	var allowed map[session.TaskStatus]struct{}
	if len(statuses) > 0 {
		allowed = make(map[session.TaskStatus]struct{}, len(statuses))
		for _, st := range statuses {
			allowed[st] = struct{}{}
		}
	}
	out := make([]session.TaskRecord, 0, len(ids))
	for _, id := range ids {
		task, err := s.LoadTask(ctx, id)
		if err == session.ErrTaskNotFound {
			continue
		}
		if err != nil {
			return nil, err
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
