package status

import (
	"sync"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/internal/pkg/metrics"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

// Multi fans every event out to all sinks in order.
type Multi []core.Sink

var _ core.Sink = Multi(nil)

func (m Multi) Report(o core.Outcome) {
	for _, s := range m {
		s.Report(o)
	}
}

func (m Multi) Progress(p core.Progress) {
	for _, s := range m {
		s.Progress(p)
	}
}

// NonBlocking decouples a slow sink from the update loop. Events are queued
// and delivered by a single goroutine; when the queue is full new events are
// dropped.
type NonBlocking struct {
	sink  core.Sink
	queue chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ core.Sink = (*NonBlocking)(nil)

func NewNonBlocking(sink core.Sink, size int) *NonBlocking {
	if size <= 0 {
		size = 64
	}
	n := &NonBlocking{
		sink:  sink,
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go n.drain()
	return n
}

func (n *NonBlocking) Report(o core.Outcome) {
	n.enqueue(func() { n.sink.Report(o) })
}

func (n *NonBlocking) Progress(p core.Progress) {
	n.enqueue(func() { n.sink.Progress(p) })
}

// Close stops accepting events and waits until queued ones are delivered.
func (n *NonBlocking) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *NonBlocking) enqueue(fn func()) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		metrics.StatusEventsDropped.Inc()
		return
	}
	select {
	case n.queue <- fn:
	default:
		metrics.StatusEventsDropped.Inc()
		log.Debug("Status queue full, dropping event")
	}
}

func (n *NonBlocking) drain() {
	defer close(n.done)
	for fn := range n.queue {
		fn()
	}
}
