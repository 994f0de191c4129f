package cli

import (
	"github.com/mobile-next/mobilesync/commands"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run system diagnostics",
	Long:  `Reports the adb binary, Android SDK and configuration in use, for better troubleshooting`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.DoctorCommand(GetVersion(), cfg.Adb.Path, configPath))
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
