package audit

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

// Recorder dispatches snapshots to the configured stores without blocking
// the request path. Each correlation id hashes onto one shard, and each
// shard is a single writer, so snapshots sharing a key are persisted in the
// order they were recorded. Ordering across different keys is not defined.
type Recorder struct {
	stores  []Store
	logger  *slog.Logger
	shards  []chan Snapshot
	wg      sync.WaitGroup
	dropped func()
	closed  sync.Once
}

const (
	defaultShards     = 16
	defaultShardDepth = 256
)

// Option configures a Recorder.
type Option func(*recorderConfig)

type recorderConfig struct {
	shards  int
	depth   int
	dropped func()
}

// WithShards sets the shard count.
func WithShards(n int) Option {
	return func(c *recorderConfig) { c.shards = n }
}

// WithDroppedHook registers a callback invoked when a snapshot is dropped
// because its shard queue is full. Used to feed the drop counter metric.
func WithDroppedHook(fn func()) Option {
	return func(c *recorderConfig) { c.dropped = fn }
}

// NewRecorder starts the shard writers. Call Close to drain them.
func NewRecorder(logger *slog.Logger, stores []Store, opts ...Option) *Recorder {
	cfg := recorderConfig{shards: defaultShards, depth: defaultShardDepth, dropped: func() {}}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Recorder{
		stores:  stores,
		logger:  logger,
		shards:  make([]chan Snapshot, cfg.shards),
		dropped: cfg.dropped,
	}
	for i := range r.shards {
		r.shards[i] = make(chan Snapshot, cfg.depth)
		r.wg.Add(1)
		go r.drain(r.shards[i])
	}
	return r
}

// Record enqueues a snapshot. It never blocks and never reports failure to
// the caller; a full shard drops the snapshot and counts it.
func (r *Recorder) Record(snap Snapshot) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	select {
	case r.shard(snap.CorrelationID) <- snap:
	default:
		r.dropped()
		r.logger.Warn("audit snapshot dropped",
			"correlation_id", snap.CorrelationID,
			"stage", snap.Stage,
		)
	}
}

// Close stops accepting work and waits for the shard writers to finish.
// Safe to call more than once; Record after Close is not.
func (r *Recorder) Close() {
	r.closed.Do(func() {
		for _, ch := range r.shards {
			close(ch)
		}
	})
	r.wg.Wait()
}

func (r *Recorder) shard(key string) chan Snapshot {
	h := fnv.New32a()
	h.Write([]byte(key))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

func (r *Recorder) drain(ch chan Snapshot) {
	defer r.wg.Done()
	for snap := range ch {
		for _, store := range r.stores {
			if err := store.Append(context.Background(), snap); err != nil {
				r.logger.Error("audit append failed",
					"correlation_id", snap.CorrelationID,
					"stage", snap.Stage,
					"error", err,
				)
			}
		}
	}
}
