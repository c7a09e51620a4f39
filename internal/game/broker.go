package game

import (
	"sync"

	"github.com/verte-zerg/nback/internal/model"
)

const subscriberBuffer = 16

// broker fans out state snapshots to subscribers in the order they were
// published. A slow subscriber loses its oldest pending snapshots, never the
// newest one.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan model.GameState
}

func newBroker() *broker {
	return &broker{subs: map[int]chan model.GameState{}}
}

func (b *broker) subscribe() (<-chan model.GameState, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan model.GameState, subscriberBuffer)
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

// publish hands every subscriber its own clone of s.
func (b *broker) publish(s model.GameState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		offer(ch, s.Clone())
	}
}

func offer(ch chan model.GameState, snap model.GameState) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		// Drop the oldest pending snapshot to make room.
		select {
		case <-ch:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
