// Package gesture turns raw pointer and key notifications into discrete
// gestures that can be replayed on other devices.
package gesture

import (
	"fmt"
	"time"

	"github.com/mobile-next/mobilesync/types"
)

// Kind is the variant tag of a Gesture
type Kind string

const (
	Tap       Kind = "tap"
	LongPress Kind = "long_press"
	Swipe     Kind = "swipe"
	Key       Kind = "key"
)

// Gesture is a classified operator action. Positions are primary-surface
// pixels. Destination is only set for swipes; KeyCode or Text only for keys.
type Gesture struct {
	Kind        Kind          `json:"kind"`
	Origin      types.Point   `json:"origin"`
	Destination *types.Point  `json:"destination,omitempty"`
	Duration    time.Duration `json:"duration"`
	KeyCode     string        `json:"keyCode,omitempty"`
	Text        string        `json:"text,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Pointer reports whether the gesture carries screen positions
func (g Gesture) Pointer() bool {
	return g.Kind == Tap || g.Kind == LongPress || g.Kind == Swipe
}

// Validate checks the fields required by the variant
func (g Gesture) Validate() error {
	switch g.Kind {
	case Tap, LongPress:
		return nil
	case Swipe:
		if g.Destination == nil {
			return fmt.Errorf("swipe gesture requires a destination")
		}
		return nil
	case Key:
		if g.KeyCode == "" && g.Text == "" {
			return fmt.Errorf("key gesture requires a key code or text")
		}
		return nil
	default:
		return fmt.Errorf("unknown gesture kind: %q", g.Kind)
	}
}

func (g Gesture) String() string {
	switch g.Kind {
	case Swipe:
		if g.Destination != nil {
			return fmt.Sprintf("swipe %s->%s", g.Origin, *g.Destination)
		}
		return fmt.Sprintf("swipe %s", g.Origin)
	case Key:
		if g.KeyCode != "" {
			return fmt.Sprintf("key %s", g.KeyCode)
		}
		return fmt.Sprintf("text %q", g.Text)
	default:
		return fmt.Sprintf("%s %s", g.Kind, g.Origin)
	}
}

func NewTap(at types.Point, ts time.Time) Gesture {
	return Gesture{Kind: Tap, Origin: at, Timestamp: ts}
}

func NewLongPress(at types.Point, held time.Duration, ts time.Time) Gesture {
	return Gesture{Kind: LongPress, Origin: at, Duration: held, Timestamp: ts}
}

func NewSwipe(from, to types.Point, took time.Duration, ts time.Time) Gesture {
	dest := to
	return Gesture{Kind: Swipe, Origin: from, Destination: &dest, Duration: took, Timestamp: ts}
}

func NewKey(code, text string, ts time.Time) Gesture {
	return Gesture{Kind: Key, KeyCode: code, Text: text, Timestamp: ts}
}
