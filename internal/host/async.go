package host

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the buffer of an AsyncListener created with size 0.
const DefaultQueueSize = 256

// AsyncListener hands bus events to a worker goroutine through a bounded
// queue so listeners doing I/O never block the loop. Events arriving while
// the queue is full are dropped and counted.
type AsyncListener struct {
	name    string
	handle  func(Event)
	logger  Logger
	queue   chan Event
	dropped atomic.Uint64
	stopped atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	exited    chan struct{}
}

// NewAsyncListener creates a listener calling handle on its worker.
// Call Start before subscribing it.
func NewAsyncListener(name string, size int, handle func(Event), logger Logger) *AsyncListener {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &AsyncListener{
		name:   name,
		handle: handle,
		logger: orNop(logger),
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Listen is the bus Listener. It never blocks.
func (a *AsyncListener) Listen(e Event) {
	if a.stopped.Load() {
		return
	}
	select {
	case a.queue <- e:
	default:
		n := a.dropped.Add(1)
		a.logger.Warn("event queue full, dropping event",
			"listener", a.name, "event_type", e.Type, "dropped_total", n)
	}
}

// Start launches the worker goroutine.
func (a *AsyncListener) Start() {
	a.startOnce.Do(func() { go a.run() })
}

// Stop rejects new events, lets the worker finish what is queued and
// waits for it to exit.
func (a *AsyncListener) Stop() {
	a.stopOnce.Do(func() {
		a.stopped.Store(true)
		close(a.done)
	})
	a.Start() // a never-started worker still has to drain and exit
	<-a.exited
}

// Dropped returns how many events were discarded because the queue was full.
func (a *AsyncListener) Dropped() uint64 {
	return a.dropped.Load()
}

func (a *AsyncListener) run() {
	defer close(a.exited)
	for {
		select {
		case e := <-a.queue:
			a.dispatch(e)
		case <-a.done:
			for {
				select {
				case e := <-a.queue:
					a.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (a *AsyncListener) dispatch(e Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("event listener panicked", "listener", a.name, "event_type", e.Type, "panic", r)
		}
	}()
	a.handle(e)
}
