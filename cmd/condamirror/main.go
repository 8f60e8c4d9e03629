// condamirror builds patches that keep an isolated conda channel in sync
// with its upstream sources.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
