package cli

import (
	"github.com/mobile-next/mobilesync/commands"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices",
	Long:  `List all Android devices and emulators reported by 'adb devices' in the ready state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.DevicesCommand(cmd.Context()))
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
