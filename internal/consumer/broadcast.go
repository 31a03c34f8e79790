package consumer

import (
	"context"
	"sync"
)

// Broadcaster fans snapshots out to in-process subscribers and remembers the
// most recent one. Slow subscribers miss snapshots rather than blocking
// delivery.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan Snapshot
	next   int
	latest *Snapshot
	final  *Snapshot
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Snapshot)}
}

// Deliver implements Consumer.
func (b *Broadcaster) Deliver(_ context.Context, s Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = &s
	if s.Final {
		b.final = &s
	}
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber with the given buffer. The returned
// function unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Latest returns the most recent snapshot of any kind.
func (b *Broadcaster) Latest() (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return Snapshot{}, false
	}
	return *b.latest, true
}

// LatestFinal returns the most recent final snapshot.
func (b *Broadcaster) LatestFinal() (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.final == nil {
		return Snapshot{}, false
	}
	return *b.final, true
}
