package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/mobile-next/mobilesync/devices"
	"github.com/mobile-next/mobilesync/engine"
)

// CommandResponse represents a standardized response format for all commands
type CommandResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *CommandResponse {
	return &CommandResponse{
		Status: "ok",
		Data:   data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err error) *CommandResponse {
	return &CommandResponse{
		Status: "error",
		Error:  err.Error(),
	}
}

// deviceRegistry is the adb command channel shared by every command.
// It is set once at application startup via SetRegistry.
var deviceRegistry *devices.DeviceRegistry

// syncEngine is set once at startup via SetEngine
var syncEngine *engine.Engine

// SetRegistry sets the global device registry.
// This should be called once at application startup (cli root or server start).
func SetRegistry(registry *devices.DeviceRegistry) {
	deviceRegistry = registry
}

// GetRegistry returns the current device registry.
// Returns nil if SetRegistry has not been called yet.
func GetRegistry() *devices.DeviceRegistry {
	return deviceRegistry
}

func SetEngine(e *engine.Engine) {
	syncEngine = e
}

func GetEngine() *engine.Engine {
	return syncEngine
}

func requireRegistry() (*devices.DeviceRegistry, error) {
	if deviceRegistry == nil {
		return nil, fmt.Errorf("device registry not initialized")
	}
	return deviceRegistry, nil
}

func requireEngine() (*engine.Engine, error) {
	if syncEngine == nil {
		return nil, fmt.Errorf("sync engine not initialized")
	}
	return syncEngine, nil
}

// FindDeviceOrAutoSelect finds a device by ID, or auto-selects if deviceID is empty
func FindDeviceOrAutoSelect(ctx context.Context, deviceID string) (*devices.AndroidDevice, error) {
	registry, err := requireRegistry()
	if err != nil {
		return nil, err
	}

	// if deviceID is provided, use existing logic
	if deviceID != "" {
		return registry.Find(ctx, deviceID)
	}

	onlineDevices, err := registry.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting devices: %w", err)
	}

	if len(onlineDevices) == 0 {
		return nil, fmt.Errorf("no online devices found")
	}

	if len(onlineDevices) > 1 {
		return nil, fmt.Errorf("multiple devices found (%d), please specify --device with one of: %s", len(onlineDevices), getDeviceIDList(onlineDevices))
	}

	return registry.Find(ctx, onlineDevices[0].ID)
}

// getDeviceIDList returns a comma-separated list of device IDs for error messages
func getDeviceIDList(list []devices.DeviceInfo) string {
	var ids []string
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	return fmt.Sprintf("[%s]", strings.Join(ids, ", "))
}
