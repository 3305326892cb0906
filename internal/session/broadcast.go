// ABOUTME: Fan-out of status events to subscribers
// ABOUTME: Slow subscribers miss events instead of blocking the controller
package session

import (
	"log"
	"sync"
)

const subscriberBuffer = 16

// broadcaster fans events out to subscribers without blocking the controller
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan StatusEvent
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan StatusEvent)}
}

func (b *broadcaster) subscribe() (<-chan StatusEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan StatusEvent, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *broadcaster) publish(ev StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("Status subscriber %d is slow, dropping %s event", id, ev.Status)
		}
	}
}

// closeAll ends every subscription
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
