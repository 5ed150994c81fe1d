package telemetry

import (
	"sync"
	"sync/atomic"
)

// Broadcaster distributes samples to multiple subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the sample.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan Sample]struct{}
	dropped atomic.Uint64
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan Sample]struct{}),
	}
}

// Subscribe returns a channel that receives published samples and a cleanup function.
// The caller must call the returned cleanup when done.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Sample, func()) {
	ch := make(chan Sample, buffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish offers s to every subscriber and reports whether all of them
// accepted it.
func (b *Broadcaster) Publish(s Sample) bool {
	all := true
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- s:
		default:
			// buffer full, skip
			b.dropped.Add(1)
			all = false
		}
	}
	return all
}

// Dropped returns how many per-subscriber deliveries were skipped.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
