package input

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mobile-next/mobilesync/utils"
)

// JSONLinesSource reads one JSON encoded Event per line, e.g. from stdin or
// from a capture helper process.
type JSONLinesSource struct {
	r      io.Reader
	events chan Event
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	return &JSONLinesSource{
		r:      r,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
}

func (s *JSONLinesSource) Events() <-chan Event {
	return s.events
}

// Start begins reading in the background
func (s *JSONLinesSource) Start(ctx context.Context) error {
	started := false
	s.once.Do(func() {
		started = true
		ctx, s.cancel = context.WithCancel(ctx)
		go s.read(ctx)
	})
	if !started {
		return fmt.Errorf("source already started")
	}
	return nil
}

func (s *JSONLinesSource) read(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	sc := bufio.NewScanner(s.r)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			utils.Warn("skipping malformed event %q: %v", string(line), err)
			continue
		}
		if err := ev.Validate(); err != nil {
			utils.Warn("skipping invalid event: %v", err)
			continue
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}

	if err := sc.Err(); err != nil {
		s.err = fmt.Errorf("event reader failed: %w", err)
	}
}

// Stop cancels reading; a blocked read on the underlying reader is not
// interrupted until it returns
func (s *JSONLinesSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Err reports a read error once the events channel is closed
func (s *JSONLinesSource) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
