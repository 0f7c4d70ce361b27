package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Sink receives routed events. Write runs on the router goroutine, never on
// the simulation tick.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// NamedSink pairs a sink with its configured name for error reporting.
type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans events out to sinks through a bounded queue. Publish never
// blocks: when the queue is full the event is dropped and counted.
type Router struct {
	cfg      Config
	queue    chan Event
	sinks    []NamedSink
	clock    Clock
	fallback *log.Logger
	cancel   context.CancelFunc
	closed   atomic.Bool
	wg       sync.WaitGroup

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	lastDropWarn atomic.Int64
}

// RouterStats reports delivery counters.
type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// NewRouter starts a router draining into the provided sinks.
func NewRouter(clock Clock, cfg Config, sinks []NamedSink) *Router {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, bufferSize),
		sinks:    sinks,
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		cancel:   cancel,
	}
	r.wg.Add(1)
	go r.drain(ctx)
	return r
}

// Publish enqueues an event, stamping time when unset. Events below the
// configured severity are discarded.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || r.closed.Load() {
		return
	}
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	select {
	case r.queue <- event:
		r.eventsTotal.Add(1)
	default:
		r.droppedTotal.Add(1)
		r.warnDropped()
	}
}

// Stats returns the delivery counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

// Close stops the router, flushes the queue, and closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if r == nil || !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) drain(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.queue:
			r.dispatch(event)
		case <-ctx.Done():
			// Flush whatever is still queued before shutting down.
			for {
				select {
				case event := <-r.queue:
					r.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) dispatch(event Event) {
	for _, s := range r.sinks {
		if err := s.Sink.Write(event); err != nil {
			r.fallback.Printf("sink %s write failed: %v", s.Name, err)
		}
	}
}

func (r *Router) warnDropped() {
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := r.clock.Now().UnixNano()
	last := r.lastDropWarn.Load()
	if now-last < int64(interval) {
		return
	}
	if r.lastDropWarn.CompareAndSwap(last, now) {
		r.fallback.Printf("event queue full; dropped %d events so far", r.droppedTotal.Load())
	}
}
