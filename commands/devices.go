package commands

import "context"

// DevicesCommand lists all connected devices
func DevicesCommand(ctx context.Context) *CommandResponse {
	registry, err := requireRegistry()
	if err != nil {
		return NewErrorResponse(err)
	}

	deviceInfoList, err := registry.ListDevices(ctx)
	if err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(map[string]interface{}{
		"devices": deviceInfoList,
	})
}
