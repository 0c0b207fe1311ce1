package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stems",
	Short: "Multi-track audio recorder synced to an external clock",
	Long: `stems is a terminal-driven multi-track audio recorder. It continuously
captures every channel of a multi-channel input device, lets the operator arm
a subset of channels with independent monitoring/level/pan, optionally mixes
a stereo summing bus to a simultaneous file, and starts/stops recording under
the control of an external realtime clock source.

Commands:
  - record: open the configured audio device and begin the recording session`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
