package events

import "sync"

// DefaultBufferSize is the queue length used when NewBuffered gets a
// non-positive capacity.
const DefaultBufferSize = 1024

// Buffered hands events to a sink on its own goroutine so a slow sink (a
// database insert, say) runs outside the caller's critical section. Emit only
// blocks once the queue is full. Events reach the sink in emission order.
type Buffered struct {
	sink  Emitter
	queue chan Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewBuffered(sink Emitter, capacity int) *Buffered {
	if sink == nil {
		sink = NoopEmitter{}
	}
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	b := &Buffered{
		sink:  sink,
		queue: make(chan Event, capacity),
		done:  make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Buffered) run() {
	defer close(b.done)
	for evt := range b.queue {
		b.sink.Emit(evt)
	}
}

// Emit queues evt. After Close it forwards to the sink directly.
func (b *Buffered) Emit(evt Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		b.sink.Emit(evt)
		return
	}
	b.queue <- evt
	b.mu.RUnlock()
}

// Queued reports how many events wait for the sink.
func (b *Buffered) Queued() int { return len(b.queue) }

// Close stops accepting queued events and waits until the sink has received
// everything already queued.
func (b *Buffered) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	<-b.done
}
