// Package input delivers raw pointer and key notifications from the surface
// the operator is driving.
package input

import (
	"context"
	"fmt"
	"time"
)

// EventType classifies a raw notification
type EventType string

const (
	PointerDown EventType = "pointer_down"
	PointerMove EventType = "pointer_move"
	PointerUp   EventType = "pointer_up"
	KeyDown     EventType = "key_down"
)

// Event is a raw notification tagged with the surface it came from. Surface
// is the id of the device whose mirror window produced the event.
type Event struct {
	Type      EventType `json:"type"`
	X         int       `json:"x,omitempty"`
	Y         int       `json:"y,omitempty"`
	Key       string    `json:"key,omitempty"`
	Text      string    `json:"text,omitempty"`
	Surface   string    `json:"surface,omitempty"`
	Timestamp int64     `json:"ts,omitempty"` // Unix ms timestamp
}

// Time converts the timestamp, falling back to now when it is unset
func (e Event) Time(now time.Time) time.Time {
	if e.Timestamp == 0 {
		return now
	}
	return time.UnixMilli(e.Timestamp)
}

// Validate checks if the event is usable
func (e Event) Validate() error {
	switch e.Type {
	case PointerDown, PointerMove, PointerUp:
		return nil
	case KeyDown:
		if e.Key == "" && e.Text == "" {
			return fmt.Errorf("key_down event needs a key or text")
		}
		return nil
	case "":
		return fmt.Errorf("event type cannot be empty")
	default:
		return fmt.Errorf("unknown event type: %s", e.Type)
	}
}

// Source produces raw events until stopped or exhausted. The channel is
// closed when the source has nothing more to deliver.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan Event
}
