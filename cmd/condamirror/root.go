package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	verbose bool

	logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "condamirror",
	})

	rootCmd = &cobra.Command{
		Use:   "condamirror",
		Short: "Mirror conda channels into isolated networks",
		Long: `condamirror keeps an isolated conda channel in sync with its upstream
sources. It compares upstream repository indexes against a local mirror,
downloads the missing packages into a dated patch directory, and rebuilds
channel metadata describing exactly what was mirrored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(func() {
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}
	})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(initCmd)
}
