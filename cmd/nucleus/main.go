package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"nucleus/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "nucleus",
	Short: "Cooperative kernel concurrency core, simulated",
	Long:  `nucleus runs a single-core cooperative scheduler with interrupt-driven timers on a simulated machine`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch colorFlag {
		case "off":
			color.NoColor = true
		case "on":
			color.NoColor = false
		default:
			// auto: the color package already detects the terminal
		}
	},
}

var (
	colorFlag string
	quietFlag bool
)

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "suppress non-essential output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
