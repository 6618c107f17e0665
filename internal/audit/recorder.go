package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultQueueSize is the number of events buffered between the request
	// path and the delivery goroutine.
	DefaultQueueSize = 256

	// persistTimeout bounds a single store write.
	persistTimeout = 5 * time.Second
)

// Sink receives every recorded event after it has been persisted.
type Sink interface {
	Deliver(evt Event) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(evt Event) error

// Deliver calls f(evt).
func (f SinkFunc) Deliver(evt Event) error { return f(evt) }

// Recorder accepts events on the request path without blocking and
// delivers them from a single goroutine: first to the store, then to each
// registered sink. A full queue drops the event with a warning.
type Recorder struct {
	store  Repository
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	sinks  []namedSink
	closed bool

	queue chan Event
	done  chan struct{}
}

type namedSink struct {
	name string
	sink Sink
}

// NewRecorder starts a recorder. store may be nil, in which case events
// only reach the sinks. Close must be called to drain the queue.
func NewRecorder(store Repository, logger *slog.Logger, queueSize int) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	r := &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// AddSink registers a sink. Sinks added after an event is dequeued do not
// see that event.
func (r *Recorder) AddSink(name string, sink Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, namedSink{name: name, sink: sink})
	r.mu.Unlock()
}

// Record enqueues evt. ID and CreatedAt are assigned here so they are
// stable across the store and every sink.
func (r *Recorder) Record(evt Event) {
	if r == nil {
		return
	}
	if evt.ID == "" {
		evt.ID = "evt-" + uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = r.now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- evt:
	default:
		r.logger.Warn("audit queue full, dropping event",
			"action", string(evt.Action),
			"outcome", evt.Outcome,
		)
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for evt := range r.queue {
		r.deliver(evt)
	}
}

func (r *Recorder) deliver(evt Event) {
	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := r.store.Create(ctx, &evt); err != nil {
			r.logger.Error("persisting audit event failed",
				"action", string(evt.Action),
				"error", err,
			)
		}
		cancel()
	}

	// Snapshot under the lock, deliver outside it.
	r.mu.RLock()
	sinks := make([]namedSink, len(r.sinks))
	copy(sinks, r.sinks)
	r.mu.RUnlock()

	for _, s := range sinks {
		if err := s.sink.Deliver(evt); err != nil {
			r.logger.Debug("audit sink delivery failed",
				"sink", s.name,
				"action", string(evt.Action),
				"error", err,
			)
		}
	}
}
