package tracestore

import (
	"context"
	"errors"
)

// StoreOptions configures the Mongo-backed trace store.
type StoreOptions struct {
	Client Client
}

// Store implements trace record persistence by delegating to a Client.
type Store struct {
	client Client
}

// NewStore builds a Store using the provided client.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo instantiates the Store by constructing the underlying client.
func NewStoreFromMongo(opts Options) (*Store, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(StoreOptions{Client: c})
}

// Upsert stores the provided trace record.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	return s.client.UpsertTrace(ctx, rec)
}

// Load retrieves a trace record, returning a zero Record with no error if
// none exists (mirrors the underlying client's not-found convention).
func (s *Store) Load(ctx context.Context, taskID string) (Record, error) {
	return s.client.LoadTrace(ctx, taskID)
}
