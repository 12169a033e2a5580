package fetchlist

import (
	"context"
	"sync"
)

// StateCell holds the current FetchState and fans every change out to subscribers.
// Only the Controller writes to it; readers use Load and Subscribe.
type StateCell struct {
	mu      sync.RWMutex
	current FetchState
	subs    map[*subscriber]struct{}
}

// NewStateCell creates a cell holding initial. A nil initial becomes Idle.
func NewStateCell(initial FetchState) *StateCell {
	if initial == nil {
		initial = Idle{}
	}
	return &StateCell{
		current: initial,
		subs:    make(map[*subscriber]struct{}),
	}
}

// Load returns the current state.
func (c *StateCell) Load() FetchState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Subscribe returns a channel that yields the current state followed by every later
// state, in publication order and without gaps. The channel is closed once ctx is done.
// A slow reader never blocks the writer; its backlog is queued.
func (c *StateCell) Subscribe(ctx context.Context) <-chan FetchState {
	sub := &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan FetchState),
	}

	c.mu.Lock()
	sub.push(c.current)
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.subs, sub)
			c.mu.Unlock()
			close(sub.out)
		}()
		sub.pump(ctx)
	}()

	return sub.out
}

// publish replaces the current state and queues it for every subscriber.
func (c *StateCell) publish(s FetchState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = s
	for sub := range c.subs {
		sub.push(s)
	}
}

type subscriber struct {
	mu     sync.Mutex
	queue  []FetchState
	signal chan struct{}
	out    chan FetchState
}

func (s *subscriber) push(state FetchState) {
	s.mu.Lock()
	s.queue = append(s.queue, state)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() (FetchState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	next := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return next, true
}

func (s *subscriber) pump(ctx context.Context) {
	for {
		next, ok := s.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.signal:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case s.out <- next:
		}
	}
}
