package draft

import (
	"sync"

	"github.com/google/uuid"
)

// Broadcaster fans draft refresh notifications out to subscribers of an owner.
// Slow subscribers miss notifications rather than block the writer.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[uuid.UUID]map[int]chan struct{}
}

// NewBroadcaster creates an empty Broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uuid.UUID]map[int]chan struct{})}
}

// Subscribe registers for refreshes of owner's draft. The returned cancel
// function must be called to release the subscription.
func (b *Broadcaster) Subscribe(owner uuid.UUID) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[owner] == nil {
		b.subs[owner] = make(map[int]chan struct{})
	}
	b.subs[owner][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[owner], id)
			if len(b.subs[owner]) == 0 {
				delete(b.subs, owner)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// DraftRefreshed implements Notifier
func (b *Broadcaster) DraftRefreshed(owner uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[owner] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions for owner
func (b *Broadcaster) Subscribers(owner uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[owner])
}
