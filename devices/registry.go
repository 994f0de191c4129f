package devices

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mobile-next/mobilesync/types"
	"github.com/mobile-next/mobilesync/utils"
)

// DeviceRegistry enumerates reachable Android devices through adb and routes
// commands to them by id.
type DeviceRegistry struct {
	mu      sync.RWMutex
	adbPath string
	run     CommandRunner
	devices map[string]*AndroidDevice
}

// NewDeviceRegistry creates a new device registry instance
func NewDeviceRegistry(adbPath string) *DeviceRegistry {
	return NewDeviceRegistryWithRunner(adbPath, execRunner)
}

// NewDeviceRegistryWithRunner creates a registry that runs adb through run
// instead of spawning processes
func NewDeviceRegistryWithRunner(adbPath string, run CommandRunner) *DeviceRegistry {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &DeviceRegistry{
		adbPath: adbPath,
		run:     run,
		devices: make(map[string]*AndroidDevice),
	}
}

// ListDevices runs `adb devices` and replaces the known device set. Names are
// looked up once per device and kept across refreshes. The lookups run
// without holding the lock so a slow device cannot stall Find.
func (r *DeviceRegistry) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	output, err := r.run(ctx, r.adbPath, "devices")
	if err != nil {
		return nil, fmt.Errorf("failed to run 'adb devices': %v", err)
	}

	found := parseAdbDevicesOutput(string(output))

	r.mu.RLock()
	var fresh []*AndroidDevice
	for _, info := range found {
		if _, known := r.devices[info.ID]; !known {
			fresh = append(fresh, &AndroidDevice{
				id:      info.ID,
				adbPath: r.adbPath,
				run:     r.run,
			})
		}
	}
	r.mu.RUnlock()

	for _, device := range fresh {
		device.name = r.lookupName(ctx, device)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := make(map[string]*AndroidDevice, len(fresh))
	for _, device := range fresh {
		created[device.id] = device
	}

	next := make(map[string]*AndroidDevice, len(found))
	infos := make([]DeviceInfo, 0, len(found))
	for _, info := range found {
		// a concurrent refresh may have added it meanwhile
		device, known := r.devices[info.ID]
		if !known {
			device = created[info.ID]
		}
		device.state = info.State
		next[info.ID] = device
		infos = append(infos, device.Info())
	}
	r.devices = next

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (r *DeviceRegistry) lookupName(ctx context.Context, device *AndroidDevice) string {
	output, err := device.runAdbCommand(ctx, "shell", "getprop", "ro.product.model")
	name := strings.TrimSpace(string(output))
	if err != nil || name == "" {
		utils.Verbose("could not read model of %s: %v", device.id, err)
		return device.id
	}
	return name
}

// Find returns a known device, refreshing the enumeration once if needed
func (r *DeviceRegistry) Find(ctx context.Context, id string) (*AndroidDevice, error) {
	if id == "" {
		return nil, fmt.Errorf("device ID is required")
	}

	r.mu.RLock()
	device, ok := r.devices[id]
	r.mu.RUnlock()
	if ok {
		return device, nil
	}

	if _, err := r.ListDevices(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok = r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrDeviceUnavailable, id)
	}
	return device, nil
}

// SendAction performs one action on one device. The context carries the
// command timeout.
func (r *DeviceRegistry) SendAction(ctx context.Context, deviceID string, action Action) (string, error) {
	device, err := r.Find(ctx, deviceID)
	if err != nil {
		return "", err
	}
	return device.Perform(ctx, action)
}

func (r *DeviceRegistry) ScreenSize(ctx context.Context, deviceID string) (types.Size, error) {
	device, err := r.Find(ctx, deviceID)
	if err != nil {
		return types.Size{}, err
	}
	return device.ScreenSize(ctx)
}

func (r *DeviceRegistry) Orientation(ctx context.Context, deviceID string) (types.Orientation, error) {
	device, err := r.Find(ctx, deviceID)
	if err != nil {
		return "", err
	}
	return device.Orientation(ctx)
}

// Geometry returns the effective screen geometry of a device
func (r *DeviceRegistry) Geometry(ctx context.Context, deviceID string) (types.Geometry, error) {
	device, err := r.Find(ctx, deviceID)
	if err != nil {
		return types.Geometry{}, err
	}
	return device.Geometry(ctx)
}

// Info returns device details including the current screen geometry
func (r *DeviceRegistry) Info(ctx context.Context, deviceID string) (*FullDeviceInfo, error) {
	device, err := r.Find(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	info := &FullDeviceInfo{DeviceInfo: device.Info()}
	geometry, err := device.Geometry(ctx)
	if err != nil {
		utils.Verbose("geometry unavailable for %s: %v", deviceID, err)
		return info, nil
	}

	info.ScreenSize = &geometry.Size
	info.Orientation = geometry.Orientation
	return info, nil
}
