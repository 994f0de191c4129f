package devices

import (
	"context"
	"fmt"

	"github.com/mobile-next/mobilesync/types"
)

// ActionKind names a discrete device-control action.
type ActionKind string

const (
	ActionTap       ActionKind = "tap"
	ActionLongPress ActionKind = "long_press"
	ActionSwipe     ActionKind = "swipe"
	ActionKey       ActionKind = "key"
	ActionText      ActionKind = "text"
)

// Action is a single command sent to one device. Only the fields relevant to
// Kind are used.
type Action struct {
	Kind       ActionKind `json:"kind"`
	X          int        `json:"x,omitempty"`
	Y          int        `json:"y,omitempty"`
	X2         int        `json:"x2,omitempty"`
	Y2         int        `json:"y2,omitempty"`
	DurationMs int        `json:"durationMs,omitempty"`
	Key        string     `json:"key,omitempty"`
	Text       string     `json:"text,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case ActionTap, ActionLongPress:
		return fmt.Sprintf("%s (%d,%d)", a.Kind, a.X, a.Y)
	case ActionSwipe:
		return fmt.Sprintf("swipe (%d,%d)->(%d,%d) %dms", a.X, a.Y, a.X2, a.Y2, a.DurationMs)
	case ActionKey:
		return fmt.Sprintf("key %s", a.Key)
	case ActionText:
		return fmt.Sprintf("text %q", a.Text)
	default:
		return string(a.Kind)
	}
}

// ControllableDevice is a device the sync engine can drive.
type ControllableDevice interface {
	ID() string
	Name() string
	Platform() string   // e.g. "android"
	DeviceType() string // e.g. "real", "emulator"

	Tap(ctx context.Context, x, y int) error
	LongPress(ctx context.Context, x, y, durationMs int) error
	Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error
	PressButton(ctx context.Context, key string) error
	SendKeys(ctx context.Context, text string) error
	Perform(ctx context.Context, action Action) (string, error)
	ScreenSize(ctx context.Context) (types.Size, error)
	Orientation(ctx context.Context) (types.Orientation, error)
}

// DeviceInfo represents the JSON-friendly device information
type DeviceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Type     string `json:"type"`
	State    string `json:"state"`
}

// FullDeviceInfo adds the live screen geometry
type FullDeviceInfo struct {
	DeviceInfo
	ScreenSize  *types.Size       `json:"screenSize,omitempty"`
	Orientation types.Orientation `json:"orientation,omitempty"`
}
