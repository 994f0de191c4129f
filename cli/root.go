package cli

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/mobile-next/mobilesync/commands"
	"github.com/mobile-next/mobilesync/config"
	"github.com/mobile-next/mobilesync/devices"
	"github.com/mobile-next/mobilesync/engine"
	"github.com/mobile-next/mobilesync/utils"
	"github.com/spf13/cobra"
)

const version = "dev"

// cfg is the loaded configuration, valid once PersistentPreRunE has run
var cfg = config.Default()

var shutdownHook = devices.NewShutdownHook()

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mobilesync",
	Short: "Mirror touch input from one Android device to many",
	Long:  `Replicates taps, long presses, swipes and keys performed on a primary Android device onto any number of secondary devices over adb.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func GetVersion() string {
	return version
}

func initConfig() {
	utils.SetVerbose(verbose)
}

// setup loads the configuration and wires the adb registry and the sync
// engine shared by all commands
func setup() error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	adbPath := commands.ResolveAdbPath(cfg.Adb.Path)
	utils.Verbose("using adb at %s", adbPath)

	registry := devices.NewDeviceRegistry(adbPath)
	e := engine.New(cfg, registry)
	commands.SetRegistry(registry)
	commands.SetEngine(e)

	shutdownHook.Register("sync engine", e.Close)
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to an INI configuration file")
}

// Execute runs the root command
func Execute() error {
	// enable microseconds in logs
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	return rootCmd.Execute()
}

// Shutdown releases what the running command holds, e.g. an active sync session
func Shutdown() error {
	return shutdownHook.Shutdown()
}

// printJson is a helper function to print JSON responses
func printJson(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(jsonData))
}

// printResponse prints a command response and turns its error into the
// command's exit status
func printResponse(response *commands.CommandResponse) error {
	printJson(response)
	if response.Status == "error" {
		return fmt.Errorf("%s", response.Error)
	}
	return nil
}
