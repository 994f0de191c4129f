package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mobile-next/mobilesync/commands"
	"github.com/spf13/cobra"
)

var ioCmd = &cobra.Command{
	Use:   "io",
	Short: "Input/output operations with devices",
	Long:  `Perform input operations like tapping, pressing buttons, and sending text to a single device.`,
}

// parseCoords parses "x,y" style arguments into exactly n integers
func parseCoords(s string, names ...string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != len(names) {
		return nil, fmt.Errorf("invalid coordinate format. Expected '%s', got '%s'", strings.Join(names, ","), s)
	}

	values := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate values. %s must be integers. Got %s='%s'", strings.Join(names, ", "), names[i], part)
		}
		values[i] = v
	}

	return values, nil
}

var ioTapCmd = &cobra.Command{
	Use:   "tap [x,y]",
	Short: "Tap on a device screen at the given coordinates",
	Long:  `Sends a tap event to the specified device at the given x,y coordinates. Coordinates should be provided as a single string "x,y".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords, err := parseCoords(args[0], "x", "y")
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.TapRequest{
			DeviceID: deviceId,
			X:        coords[0],
			Y:        coords[1],
		}

		return printResponse(commands.TapCommand(cmd.Context(), req))
	},
}

var ioLongPressCmd = &cobra.Command{
	Use:   "longpress [x,y]",
	Short: "Long press on a device screen at the given coordinates",
	Long:  `Sends a long press event to the specified device at the given x,y coordinates. Coordinates should be provided as a single string "x,y".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords, err := parseCoords(args[0], "x", "y")
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.LongPressRequest{
			DeviceID:   deviceId,
			X:          coords[0],
			Y:          coords[1],
			DurationMs: durationMs,
		}

		return printResponse(commands.LongPressCommand(cmd.Context(), req))
	},
}

var ioButtonCmd = &cobra.Command{
	Use:   "button [button_name]",
	Short: "Press a hardware button on a device",
	Long:  `Sends a hardware button press event to the specified device (e.g., "HOME", "BACK", "VOLUME_UP", "POWER"). Button names are case-insensitive.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := commands.ButtonRequest{
			DeviceID: deviceId,
			Button:   args[0],
		}

		return printResponse(commands.ButtonCommand(cmd.Context(), req))
	},
}

var ioTextCmd = &cobra.Command{
	Use:   "text [text]",
	Short: "Send text input to a device",
	Long:  `Sends text input to the currently focused element on the specified device.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := commands.TextRequest{
			DeviceID: deviceId,
			Text:     args[0],
		}

		return printResponse(commands.TextCommand(cmd.Context(), req))
	},
}

var ioSwipeCmd = &cobra.Command{
	Use:   "swipe [x1,y1,x2,y2]",
	Short: "Swipe on a device screen from one point to another",
	Long:  `Sends a swipe gesture to the specified device from coordinates x1,y1 to x2,y2. Coordinates should be provided as a single string "x1,y1,x2,y2".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords, err := parseCoords(args[0], "x1", "y1", "x2", "y2")
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.SwipeRequest{
			DeviceID:   deviceId,
			X1:         coords[0],
			Y1:         coords[1],
			X2:         coords[2],
			Y2:         coords[3],
			DurationMs: durationMs,
		}

		return printResponse(commands.SwipeCommand(cmd.Context(), req))
	},
}

func init() {
	rootCmd.AddCommand(ioCmd)

	// add io subcommands
	ioCmd.AddCommand(ioTapCmd)
	ioCmd.AddCommand(ioLongPressCmd)
	ioCmd.AddCommand(ioButtonCmd)
	ioCmd.AddCommand(ioTextCmd)
	ioCmd.AddCommand(ioSwipeCmd)

	// io command flags
	ioTapCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to tap on")
	ioLongPressCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to long press on")
	ioButtonCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to press button on")
	ioTextCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to send keys to")
	ioSwipeCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to swipe on")

	ioLongPressCmd.Flags().IntVar(&durationMs, "duration", 0, "press duration in milliseconds (default 1000)")
	ioSwipeCmd.Flags().IntVar(&durationMs, "duration", 0, "swipe duration in milliseconds (default 300)")
}
