package input

import (
	"context"
	"fmt"
	"sync"
)

// PushSource is fed programmatically, e.g. by the JSON-RPC server
type PushSource struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

func NewPushSource(buffer int) *PushSource {
	return &PushSource{events: make(chan Event, buffer)}
}

func (s *PushSource) Start(ctx context.Context) error {
	return nil
}

func (s *PushSource) Events() <-chan Event {
	return s.events
}

// Push delivers an event without blocking. A full buffer drops the event,
// replaying stale input later would not match what the operator sees.
func (s *PushSource) Push(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("source stopped")
	}

	select {
	case s.events <- ev:
		return nil
	default:
		return fmt.Errorf("input buffer full, event dropped")
	}
}

func (s *PushSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
