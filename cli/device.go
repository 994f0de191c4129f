package cli

import (
	"github.com/mobile-next/mobilesync/commands"
	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Device management commands",
	Long:  `Commands for inspecting individual devices.`,
}

var deviceInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Get device info",
	Long:  `Get information about a connected device, including its screen size and current orientation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := commands.InfoCommand(cmd.Context(), deviceId)
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}
		return printResponse(commands.NewSuccessResponse(info))
	},
}

var deviceOrientationCmd = &cobra.Command{
	Use:   "orientation",
	Short: "Get the current screen orientation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.OrientationGetCommand(cmd.Context(), commands.OrientationGetRequest{DeviceID: deviceId}))
	},
}

func init() {
	rootCmd.AddCommand(deviceCmd)

	// add device subcommands
	deviceCmd.AddCommand(deviceInfoCmd)
	deviceCmd.AddCommand(deviceOrientationCmd)

	// device command flags
	deviceInfoCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to get info from")
	deviceOrientationCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to get orientation from")
}
