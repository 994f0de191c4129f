package commands

import (
	"context"
	"fmt"
)

// OrientationGetRequest represents the request for getting device orientation
type OrientationGetRequest struct {
	DeviceID string `json:"deviceId"`
}

// OrientationResponse represents the response containing orientation information
type OrientationResponse struct {
	Orientation string `json:"orientation"`
}

// OrientationGetCommand gets the current device orientation
func OrientationGetCommand(ctx context.Context, req OrientationGetRequest) *CommandResponse {
	device, err := FindDeviceOrAutoSelect(ctx, req.DeviceID)
	if err != nil {
		return NewErrorResponse(err)
	}

	orientation, err := device.Orientation(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("failed to get orientation: %v", err))
	}

	return NewSuccessResponse(OrientationResponse{
		Orientation: string(orientation),
	})
}
