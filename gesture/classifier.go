package gesture

import (
	"math"
	"sync"
	"time"

	"github.com/mobile-next/mobilesync/input"
	"github.com/mobile-next/mobilesync/types"
	"github.com/mobile-next/mobilesync/utils"
)

// State of the press/release state machine
type State int

const (
	Idle State = iota
	Pressed
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Classifier consumes raw events and emits a Gesture on release or key-down.
type Classifier struct {
	mu            sync.Mutex
	longPress     time.Duration
	moveThreshold float64
	surface       string
	state         State
	origin        types.Point
	pressedAt     time.Time
	now           func() time.Time
}

// NewClassifier creates a classifier. Presses held longer than longPress
// become long presses; pointer travel above moveThreshold pixels is a drag.
func NewClassifier(longPress time.Duration, moveThreshold int) *Classifier {
	return &Classifier{
		longPress:     longPress,
		moveThreshold: float64(moveThreshold),
		now:           time.Now,
	}
}

// SetSurface restricts classification to events from one surface. Events
// without a surface tag are always accepted.
func (c *Classifier) SetSurface(surface string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = surface
	c.state = Idle
}

// Reset drops any press in progress
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
}

func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Feed advances the state machine. It returns a gesture when one completes.
func (c *Classifier) Feed(ev input.Event) (Gesture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.surface != "" && ev.Surface != "" && ev.Surface != c.surface {
		utils.Verbose("ignoring %s from surface %s", ev.Type, ev.Surface)
		return Gesture{}, false
	}

	at := ev.Time(c.now())
	pos := types.Point{X: ev.X, Y: ev.Y}

	switch ev.Type {
	case input.PointerDown:
		if c.state != Idle {
			utils.Verbose("pointer down while %s, restarting press", c.state)
		}
		c.state = Pressed
		c.origin = pos
		c.pressedAt = at

	case input.PointerMove:
		if c.state == Idle {
			return Gesture{}, false
		}
		// sub-threshold jitter is not a drag
		if distance(c.origin, pos) <= c.moveThreshold {
			return Gesture{}, false
		}
		c.state = Dragging

	case input.PointerUp:
		if c.state == Idle {
			return Gesture{}, false
		}
		c.state = Idle
		return c.release(pos, at), true

	case input.KeyDown:
		if c.state != Idle {
			utils.Verbose("ignoring key %s during a press", ev.Key)
			return Gesture{}, false
		}
		return NewKey(ev.Key, ev.Text, at), true
	}

	return Gesture{}, false
}

func (c *Classifier) release(pos types.Point, at time.Time) Gesture {
	held := at.Sub(c.pressedAt)
	if held < 0 {
		held = 0
	}

	if held > c.longPress {
		return NewLongPress(c.origin, held, at)
	}
	if distance(c.origin, pos) > c.moveThreshold {
		return NewSwipe(c.origin, pos, held, at)
	}
	return NewTap(c.origin, at)
}

func distance(a, b types.Point) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}
