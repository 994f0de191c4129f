// Package feedback carries human-readable progress of sync cycles to the
// operator: log lines and WebSocket subscribers.
package feedback

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindSync    Kind = "sync"
	KindResult  Kind = "result"
	KindStats   Kind = "stats"
	KindTimeout Kind = "timeout"
	KindBusy    Kind = "busy"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

type Event struct {
	Time     time.Time `json:"time"`
	Kind     Kind      `json:"kind"`
	Message  string    `json:"message"`
	DeviceID string    `json:"deviceId,omitempty"`
	CycleID  string    `json:"cycleId,omitempty"`
}

func Messagef(kind Kind, format string, args ...interface{}) Event {
	return Event{
		Time:    time.Now(),
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Sink receives feedback events. Emit must not block for long, it is called
// from the dispatch path.
type Sink interface {
	Emit(ev Event)
}

type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) {
	f(ev)
}

// Discard drops everything
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order
type Multi []Sink

func (m Multi) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// LogSink writes events through logrus
type LogSink struct {
	logger *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ev Event) {
	fields := logrus.Fields{"kind": ev.Kind}
	if ev.DeviceID != "" {
		fields["device"] = ev.DeviceID
	}
	if ev.CycleID != "" {
		fields["cycle"] = ev.CycleID
	}

	entry := s.logger.WithFields(fields)
	switch ev.Kind {
	case KindTimeout, KindWarning:
		entry.Warn(ev.Message)
	case KindBusy:
		entry.Debug(ev.Message)
	default:
		entry.Info(ev.Message)
	}
}

// Hub broadcasts events to any number of subscribers. Slow subscribers lose
// events instead of stalling the dispatcher.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that unsubscribes
// and closes it
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

func (h *Hub) Emit(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
