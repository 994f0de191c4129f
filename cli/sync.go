package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mobile-next/mobilesync/commands"
	"github.com/mobile-next/mobilesync/input"
	"github.com/mobile-next/mobilesync/utils"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Multi-device input synchronization",
	Long:  `Replicate gestures performed on a primary device onto secondary devices.`,
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sync session from a stream of input events",
	Long: `Binds the primary device to the secondaries and replays raw input events read as JSON lines
(one {"type":"pointer_down|pointer_move|pointer_up|key_down","x":..,"y":..,"surface":..} object per line) from a file or stdin.
Statistics are printed when the stream ends.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		response := commands.SyncEnableCommand(ctx, commands.SyncEnableRequest{
			Primary:     primaryId,
			Secondaries: secondaryIds,
		})
		if response.Status == "error" {
			return printResponse(response)
		}

		reader, closeInput, err := openInput(inputPath)
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}
		defer closeInput()

		e := commands.GetEngine()
		utils.Info("sync running: %s → %v, reading events from %s", primaryId, secondaryIds, inputName(inputPath))
		if err := e.Run(ctx, input.NewJSONLinesSource(reader)); err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		e.Disable()
		return printResponse(commands.SyncStatsCommand())
	},
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func inputName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncRunCmd)

	syncRunCmd.Flags().StringVar(&primaryId, "primary", "", "ID of the device whose input is mirrored")
	syncRunCmd.Flags().StringArrayVar(&secondaryIds, "secondary", nil, "ID of a device receiving the input (repeatable)")
	syncRunCmd.Flags().StringVar(&inputPath, "input", "-", "file with JSON encoded input events, '-' for stdin")
	_ = syncRunCmd.MarkFlagRequired("primary")
	_ = syncRunCmd.MarkFlagRequired("secondary")
}
