package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mobile-next/mobilesync/commands"
	"github.com/mobile-next/mobilesync/input"
)

type IoTapParams struct {
	DeviceID string `json:"deviceId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type IoLongPressParams struct {
	DeviceID   string `json:"deviceId"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	DurationMs int    `json:"durationMs,omitempty"`
}

type IoSwipeParams struct {
	DeviceID   string `json:"deviceId"`
	X1         int    `json:"x1"`
	Y1         int    `json:"y1"`
	X2         int    `json:"x2"`
	Y2         int    `json:"y2"`
	DurationMs int    `json:"durationMs,omitempty"`
}

type IoTextParams struct {
	DeviceID string `json:"deviceId"`
	Text     string `json:"text"`
}

type IoButtonParams struct {
	DeviceID string `json:"deviceId"`
	Button   string `json:"button"`
}

type InfoParams struct {
	DeviceID string `json:"deviceId"`
}

// unwrap turns a command response into a handler result
func unwrap(response *commands.CommandResponse) (interface{}, error) {
	if response.Status == "error" {
		return nil, fmt.Errorf("%s", response.Error)
	}
	return response.Data, nil
}

func decodeParams(params json.RawMessage, v interface{}, fields string) error {
	if len(params) == 0 {
		return fmt.Errorf("'params' is required with fields: %s", fields)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid parameters: %v. Expected fields: %s", err, fields)
	}
	return nil
}

func handleDevicesList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.DevicesCommand(ctx))
}

func handleDeviceInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var infoParams InfoParams
	if err := decodeParams(params, &infoParams, "deviceId"); err != nil {
		return nil, err
	}

	info, err := commands.InfoCommand(ctx, infoParams.DeviceID)
	if err != nil {
		return nil, err
	}

	return info, nil
}

func handleIoTap(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p IoTapParams
	if err := decodeParams(params, &p, "deviceId, x, y"); err != nil {
		return nil, err
	}

	response := commands.TapCommand(ctx, commands.TapRequest{
		DeviceID: p.DeviceID,
		X:        p.X,
		Y:        p.Y,
	})
	if _, err := unwrap(response); err != nil {
		return nil, err
	}

	return okResponse, nil
}

func handleIoLongPress(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p IoLongPressParams
	if err := decodeParams(params, &p, "deviceId, x, y"); err != nil {
		return nil, err
	}

	response := commands.LongPressCommand(ctx, commands.LongPressRequest{
		DeviceID:   p.DeviceID,
		X:          p.X,
		Y:          p.Y,
		DurationMs: p.DurationMs,
	})
	if _, err := unwrap(response); err != nil {
		return nil, err
	}

	return okResponse, nil
}

func handleIoSwipe(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p IoSwipeParams
	if err := decodeParams(params, &p, "deviceId, x1, y1, x2, y2"); err != nil {
		return nil, err
	}

	if p.DeviceID == "" {
		return nil, fmt.Errorf("'deviceId' is required")
	}

	// validate that coordinates are provided (x1,y1,x2,y2 must be present)
	var rawParams map[string]interface{}
	if err := json.Unmarshal(params, &rawParams); err != nil {
		return nil, fmt.Errorf("invalid parameters format")
	}

	for _, field := range []string{"x1", "y1", "x2", "y2"} {
		if _, exists := rawParams[field]; !exists {
			return nil, fmt.Errorf("'%s' is required", field)
		}
	}

	response := commands.SwipeCommand(ctx, commands.SwipeRequest{
		DeviceID:   p.DeviceID,
		X1:         p.X1,
		Y1:         p.Y1,
		X2:         p.X2,
		Y2:         p.Y2,
		DurationMs: p.DurationMs,
	})
	if _, err := unwrap(response); err != nil {
		return nil, err
	}

	return okResponse, nil
}

func handleIoText(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p IoTextParams
	if err := decodeParams(params, &p, "deviceId, text"); err != nil {
		return nil, err
	}

	response := commands.TextCommand(ctx, commands.TextRequest{
		DeviceID: p.DeviceID,
		Text:     p.Text,
	})
	if _, err := unwrap(response); err != nil {
		return nil, err
	}

	return okResponse, nil
}

func handleIoButton(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p IoButtonParams
	if err := decodeParams(params, &p, "deviceId, button"); err != nil {
		return nil, err
	}

	response := commands.ButtonCommand(ctx, commands.ButtonRequest{
		DeviceID: p.DeviceID,
		Button:   p.Button,
	})
	if _, err := unwrap(response); err != nil {
		return nil, err
	}

	return okResponse, nil
}

func handleIoOrientationGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p commands.OrientationGetRequest
	if err := decodeParams(params, &p, "deviceId"); err != nil {
		return nil, err
	}

	return unwrap(commands.OrientationGetCommand(ctx, p))
}

func handleSyncEnable(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p commands.SyncEnableRequest
	if err := decodeParams(params, &p, "primary, secondaries"); err != nil {
		return nil, err
	}

	return unwrap(commands.SyncEnableCommand(ctx, p))
}

func handleSyncDisable(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.SyncDisableCommand())
}

func handleSyncRebuild(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.SyncRebuildCommand(ctx))
}

func handleSyncStats(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.SyncStatsCommand())
}

func handleSyncStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.SyncStatusCommand())
}

func handleSyncGesture(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p commands.SyncGestureRequest
	if err := decodeParams(params, &p, "kind, x, y"); err != nil {
		return nil, err
	}

	return unwrap(commands.SyncGestureCommand(ctx, p))
}

func handleInputEvent(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var ev input.Event
	if err := decodeParams(params, &ev, "type, x, y"); err != nil {
		return nil, err
	}

	return unwrap(commands.InputEventCommand(ctx, ev))
}

func handleInputPush(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var ev input.Event
	if err := decodeParams(params, &ev, "type, x, y"); err != nil {
		return nil, err
	}

	return unwrap(commands.InputPushCommand(ev))
}
