package session

import (
	"context"
	"slices"
	"sync"
)

// Topics published on the bus.
const (
	TopicCartChanged = "cart.changed"
	TopicUserChanged = "user.changed"
)

// Handler reacts to a topic. There is no payload; subscribers re-read state.
type Handler func(ctx context.Context, topic string)

// Bus is an in-process publish/subscribe hub. Delivery is synchronous, in
// subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers fn for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
		})
	}
}

func (b *Bus) Publish(ctx context.Context, topic string) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	ids := make([]int, 0, len(b.subs[topic]))
	for id := range b.subs[topic] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, b.subs[topic][id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, topic)
	}
}
