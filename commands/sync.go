package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/mobile-next/mobilesync/gesture"
	"github.com/mobile-next/mobilesync/input"
	"github.com/mobile-next/mobilesync/types"
)

// SyncEnableRequest binds a primary device to its secondaries
type SyncEnableRequest struct {
	Primary     string   `json:"primary"`
	Secondaries []string `json:"secondaries"`
}

// SyncGestureRequest replays one already classified gesture. Coordinates are
// primary-surface pixels.
type SyncGestureRequest struct {
	Kind       string `json:"kind"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	X2         int    `json:"x2,omitempty"`
	Y2         int    `json:"y2,omitempty"`
	DurationMs int    `json:"durationMs,omitempty"`
	Key        string `json:"key,omitempty"`
	Text       string `json:"text,omitempty"`
}

func (r SyncGestureRequest) toGesture(now time.Time) (gesture.Gesture, error) {
	origin := types.Point{X: r.X, Y: r.Y}
	duration := time.Duration(r.DurationMs) * time.Millisecond

	var g gesture.Gesture
	switch gesture.Kind(r.Kind) {
	case gesture.Tap:
		g = gesture.NewTap(origin, now)
	case gesture.LongPress:
		g = gesture.NewLongPress(origin, duration, now)
	case gesture.Swipe:
		g = gesture.NewSwipe(origin, types.Point{X: r.X2, Y: r.Y2}, duration, now)
	case gesture.Key:
		g = gesture.NewKey(r.Key, r.Text, now)
	default:
		return gesture.Gesture{}, fmt.Errorf("unknown gesture kind '%s', must be one of tap, long_press, swipe, key", r.Kind)
	}

	return g, g.Validate()
}

// SyncEnableCommand starts mirroring input from the primary to the secondaries
func SyncEnableCommand(ctx context.Context, req SyncEnableRequest) *CommandResponse {
	e, err := requireEngine()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.Primary == "" {
		return NewErrorResponse(fmt.Errorf("primary device ID is required"))
	}

	if err := e.Enable(ctx, req.Primary, req.Secondaries); err != nil {
		return NewErrorResponse(fmt.Errorf("failed to enable sync: %w", err))
	}

	return NewSuccessResponse(e.Status())
}

func SyncDisableCommand() *CommandResponse {
	e, err := requireEngine()
	if err != nil {
		return NewErrorResponse(err)
	}

	e.Disable()
	return NewSuccessResponse(map[string]interface{}{
		"message":    "Sync disabled",
		"statistics": e.Statistics(),
	})
}

// SyncRebuildCommand re-reads the geometry of every bound device
func SyncRebuildCommand(ctx context.Context) *CommandResponse {
	e, err := requireEngine()
	if err != nil {
		return NewErrorResponse(err)
	}

	if err := e.RebuildBridge(ctx); err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(e.Status())
}

func SyncStatsCommand() *CommandResponse {
	e, err := requireEngine()
	if err != nil {
		return NewErrorResponse(err)
	}

	stats := e.Statistics()
	return NewSuccessResponse(map[string]interface{}{
		"statistics":  stats,
		"successRate": stats.SuccessRate(),
		"message":     stats.String(),
	})
}

func SyncStatusCommand() *CommandResponse {
	e, err := requireEngine()
	if err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(e.Status())
}

// SyncGestureCommand replicates a gesture on every secondary device
func SyncGestureCommand(ctx context.Context, req SyncGestureRequest) *CommandResponse {
	e, err := requireEngine()
	if err != nil {
		return NewErrorResponse(err)
	}

	g, err := req.toGesture(time.Now())
	if err != nil {
		return NewErrorResponse(err)
	}

	report, err := e.HandleGesture(ctx, g)
	if err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(report)
}

// InputEventCommand feeds one raw event to the classifier. When the event
// completes a gesture the dispatch report is returned.
func InputEventCommand(ctx context.Context, ev input.Event) *CommandResponse {
	e, err := requireEngine()
	if err != nil {
		return NewErrorResponse(err)
	}

	report, err := e.HandleEvent(ctx, ev)
	if err != nil {
		return NewErrorResponse(err)
	}

	if report == nil {
		return NewSuccessResponse(map[string]interface{}{
			"message": fmt.Sprintf("Accepted %s event", ev.Type),
		})
	}

	return NewSuccessResponse(report)
}

// inputQueue feeds the engine's input pump while the server runs
var inputQueue *input.PushSource

func SetInputQueue(q *input.PushSource) {
	inputQueue = q
}

// InputPushCommand queues one raw event for asynchronous replay and returns
// without waiting for a dispatch cycle
func InputPushCommand(ev input.Event) *CommandResponse {
	if inputQueue == nil {
		return NewErrorResponse(fmt.Errorf("input queue is not running, start the server first"))
	}

	if err := inputQueue.Push(ev); err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(map[string]interface{}{
		"message": fmt.Sprintf("Queued %s event", ev.Type),
	})
}
