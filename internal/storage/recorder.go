package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"uav-control-manager/internal/logger"
	"uav-control-manager/internal/types"
)

const (
	recorderQueueSize = 256
	sinkTimeout       = 2 * time.Second
)

// Sink is a destination for journal events.
type Sink interface {
	Append(ctx context.Context, ev types.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, ev types.Event) error

func (f SinkFunc) Append(ctx context.Context, ev types.Event) error {
	return f(ctx, ev)
}

// Recorder hands events to its sinks from a background goroutine. Record
// never blocks; when the queue is full the event is dropped and counted.
type Recorder struct {
	sinks  []Sink
	logger *logger.Logger
	queue  chan types.Event

	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewRecorder(l *logger.Logger, sinks ...Sink) *Recorder {
	r := &Recorder{
		sinks:  sinks,
		logger: l,
		queue:  make(chan types.Event, recorderQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues an event. Events after Close are ignored.
func (r *Recorder) Record(ev types.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- ev:
	default:
		n := r.dropped.Add(1)
		r.logger.ThrottledWarnf(5*time.Second, "Journal queue full, %d events dropped so far", n)
	}
}

// Dropped returns how many events were lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.queue {
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := s.Append(ctx, ev); err != nil {
				r.logger.ThrottledWarnf(5*time.Second, "Failed to record %s event: %v", ev.Kind, err)
			}
			cancel()
		}
	}
}

// Close drains the queue and waits for the sinks.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
