package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/clinical-intake/internal/model"
)

const (
	DefaultQueueSize    = 1024
	DefaultWriteTimeout = 5 * time.Second
)

// Recorder queues entries in a bounded channel drained by one worker.
// Record never blocks; when the queue is full the entry is dropped and
// counted.
type Recorder struct {
	sink         Sink
	log          *zap.Logger
	writeTimeout time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	closed  bool
	queue   chan Entry
	done    chan struct{}
	dropped atomic.Uint64
}

// NewRecorder starts the worker. size and writeTimeout fall back to the
// defaults when not positive.
func NewRecorder(sink Sink, size int, writeTimeout time.Duration, log *zap.Logger) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		sink:         sink,
		log:          log,
		writeTimeout: writeTimeout,
		now:          time.Now,
		queue:        make(chan Entry, size),
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an entry for actor. It returns immediately.
func (r *Recorder) Record(actor model.Principal, action string, payload map[string]any) {
	e := NewEntry(actor, action, payload, r.now())

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(e, "recorder closed")
		return
	}
	select {
	case r.queue <- e:
	default:
		r.drop(e, "queue full")
	}
}

// Dropped reports how many entries were discarded.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close stops intake and waits for queued entries to be written or for ctx
// to expire, whichever comes first.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.write(e)
	}
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if err := r.sink.Write(ctx, e); err != nil {
		r.log.Error("audit write failed",
			zap.String("action", e.Action),
			zap.Int64("user_id", e.UserID),
			zap.Error(err),
		)
	}
}

func (r *Recorder) drop(e Entry, reason string) {
	n := r.dropped.Add(1)
	r.log.Warn("audit entry dropped",
		zap.String("reason", reason),
		zap.String("action", e.Action),
		zap.Int64("user_id", e.UserID),
		zap.Uint64("dropped_total", n),
	)
}
