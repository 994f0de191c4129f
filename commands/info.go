package commands

import (
	"context"
	"fmt"

	"github.com/mobile-next/mobilesync/devices"
)

func InfoCommand(ctx context.Context, deviceID string) (*devices.FullDeviceInfo, error) {
	targetDevice, err := FindDeviceOrAutoSelect(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("error finding device: %v", err)
	}

	info, err := deviceRegistry.Info(ctx, targetDevice.ID())
	if err != nil {
		return nil, fmt.Errorf("error getting device info: %v", err)
	}

	return info, nil
}
