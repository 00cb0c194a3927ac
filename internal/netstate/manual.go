package netstate

import (
	"context"
	"sync"

	"linkcore/internal/events"
)

// Manual is a Source driven by code instead of the OS. Push records the new
// state and notifies subscribers synchronously.
type Manual struct {
	mu       sync.RWMutex
	state    State
	fetchErr error
	changes  events.Channel[State]
}

// NewManual creates a Manual source seeded with state.
func NewManual(state State) *Manual {
	return &Manual{state: state}
}

// Fetch implements Source.
func (m *Manual) Fetch(context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fetchErr != nil {
		return State{}, m.fetchErr
	}
	return m.state, nil
}

// Subscribe implements Source.
func (m *Manual) Subscribe(fn func(State)) func() {
	return m.changes.Subscribe(fn)
}

// Push replaces the current state and notifies subscribers.
func (m *Manual) Push(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.changes.Publish(state)
}

// FailFetch makes subsequent Fetch calls return err. A nil err clears it.
func (m *Manual) FailFetch(err error) {
	m.mu.Lock()
	m.fetchErr = err
	m.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (m *Manual) Subscribers() int {
	return m.changes.Len()
}
