package playback

import (
	"sync"
	"sync/atomic"
)

// Emitter fans events out to subscribers. Emit never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber.
type Emitter struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	dropped atomic.Int64
}

// NewEmitter creates an emitter with no subscribers
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered channel. The returned func unsubscribes
// and closes the channel; it is safe to call more than once.
func (em *Emitter) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	em.mu.Lock()
	id := em.next
	em.next++
	em.subs[id] = ch
	em.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			em.mu.Lock()
			delete(em.subs, id)
			em.mu.Unlock()
			close(ch)
		})
	}
}

// Emit delivers ev to every subscriber that has room for it
func (em *Emitter) Emit(ev Event) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	for _, ch := range em.subs {
		select {
		case ch <- ev:
		default:
			em.dropped.Add(1)
		}
	}
}

// Dropped is the number of deliveries skipped because of full buffers
func (em *Emitter) Dropped() int64 {
	return em.dropped.Load()
}
