// Package broadcast fans live events out to subscribers without letting a slow
// subscriber hold up the others.
package broadcast

import (
	"sync"
	"sync/atomic"
)

const DefaultBuffer = 16

// Subscription is one observer's queue. C is closed on Unsubscribe or Close.
type Subscription[T any] struct {
	C  <-chan T
	id uint64
}

type Broadcaster[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]chan T
	nextID  uint64
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

func New[T any](buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster[T]{
		subs:   make(map[uint64]chan T),
		buffer: buffer,
	}
}

// Subscribe adds a subscriber. On a closed broadcaster the returned channel is already closed.
func (b *Broadcaster[T]) Subscribe() Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return Subscription[T]{C: ch}
	}

	b.nextID++
	b.subs[b.nextID] = ch
	return Subscription[T]{C: ch, id: b.nextID}
}

func (b *Broadcaster[T]) Unsubscribe(sub Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(ch)
	}
}

// Publish delivers msg to every subscriber with room in its queue and returns
// how many subscribers were skipped because their queue was full.
func (b *Broadcaster[T]) Publish(msg T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}

	b.dropped.Add(uint64(dropped))
	return dropped
}

func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
