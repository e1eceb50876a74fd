// Package tracestore persists task trace records to MongoDB, grounded on
// features/run/mongo/clients/mongo/client.go: a narrow Client interface in
// front of the driver so UpsertRun/LoadRun-equivalent operations are
// testable without a live server. Adapted to go.mongodb.org/mongo-driver/v2
// (the version pinned in go.mod) and to mobile-use's Record shape instead of
// the teacher's agent run.Record.
package tracestore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"
)

const (
	defaultCollection = "task_traces"
	defaultOpTimeout  = 5 * time.Second
	clientName        = "tracestore-mongo"
)

// Record captures durable metadata for one task's trace: where its
// artifacts live on disk, and a copy of its goal/output for quick lookup
// without re-reading the task's session.TaskRecord.
type Record struct {
	TaskID    string
	SessionID string
	Goal      string
	Output    string
	TraceDir  string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Client exposes Mongo-backed operations for trace records.
type Client interface {
	health.Pinger

	UpsertTrace(ctx context.Context, rec Record) error
	LoadTrace(ctx context.Context, taskID string) (Record, error)
}

// Options configures the Mongo trace client.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(collName)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: mcoll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newClientWithCollection(opts.Client, wrapper, timeout)
}

func (c *client) Name() string { return clientName }

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) UpsertTrace(ctx context.Context, rec Record) error {
	if rec.TaskID == "" {
		return errors.New("task id is required")
	}
	now := time.Now().UTC()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	rec.UpdatedAt = now
	doc := fromRecord(rec)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"task_id": rec.TaskID}
	update := bson.M{
		"$set": doc,
		"$setOnInsert": bson.M{
			"started_at": doc.StartedAt,
		},
	}
	_, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (c *client) LoadTrace(ctx context.Context, taskID string) (Record, error) {
	if taskID == "" {
		return Record{}, errors.New("task id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"task_id": taskID}
	var doc traceDocument
	if err := c.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return Record{}, nil
		}
		return Record{}, err
	}
	return doc.toRecord(), nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type traceDocument struct {
	TaskID    string    `bson:"task_id"`
	SessionID string    `bson:"session_id,omitempty"`
	Goal      string    `bson:"goal,omitempty"`
	Output    string    `bson:"output,omitempty"`
	TraceDir  string    `bson:"trace_dir,omitempty"`
	StartedAt time.Time `bson:"started_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func fromRecord(rec Record) traceDocument {
	return traceDocument{
		TaskID:    rec.TaskID,
		SessionID: rec.SessionID,
		Goal:      rec.Goal,
		Output:    rec.Output,
		TraceDir:  rec.TraceDir,
		StartedAt: rec.StartedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
}

func (doc traceDocument) toRecord() Record {
	return Record{
		TaskID:    doc.TaskID,
		SessionID: doc.SessionID,
		Goal:      doc.Goal,
		Output:    doc.Output,
		TraceDir:  doc.TraceDir,
		StartedAt: doc.StartedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "task_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

func newClientWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) (*client, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &client{mongo: mongoClient, coll: coll, timeout: timeout}, nil
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
