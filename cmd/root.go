// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "strix",
	Short: "Strix - Stream deframing agent for header-delimited binary protocols",
	Long: `Strix ingests byte streams (TCP, recorded files, pcap captures), reassembles
header-delimited binary frames regardless of how the transport fragmented
them, and delivers complete messages to a sink (console, Kafka).

Each logical stream runs through its own bounded receive ring and a
two-state deframer, so a slow consumer shows up as backpressure instead of
unbounded memory growth.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/strix/config.yml",
		"config file path")
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
