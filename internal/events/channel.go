// Package events provides a small typed publish/subscribe primitive.
package events

import "sync"

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Channel fans one event kind out to its subscribers. Delivery is
// synchronous and follows registration order. The zero value is ready to use.
type Channel[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

// Subscribe registers fn and returns its unsubscribe handle. The handle is
// idempotent and may be called from inside fn.
func (c *Channel[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(id) })
	}
}

// Publish delivers v to the subscribers registered when Publish was called.
// Unsubscribing during a round does not change who receives that round.
func (c *Channel[T]) Publish(v T) {
	c.mu.Lock()
	if len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	snapshot := make([]subscriber[T], len(c.subs))
	copy(snapshot, c.subs)
	c.mu.Unlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}

// Len returns the current number of subscribers.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Channel[T]) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}
