package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var VERSION = "1.0.0-dev"

var rootCmd = &cobra.Command{
	Use:           "bearloader",
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "License validation and session management client",
	Long: `bearloader validates license keys against the KeyAuth license
authority, maintaining an encrypted session across runs so repeated
invocations do not re-register with the server.`,
}

type rootFlags struct {
	configFile string
	dataDir    string
	devMode    bool
	timeout    time.Duration
}

var rootArgs = rootFlags{
	timeout: time.Minute,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.configFile, "config", "",
		"Path to a YAML configuration file.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.dataDir, "data-dir", "",
		"Directory for persisted state (defaults to the per-user config directory).")
	rootCmd.PersistentFlags().BoolVar(&rootArgs.devMode, "dev", false,
		"Development mode: accept any license key without contacting the server.")
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", rootArgs.timeout,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("✗ %v\n", err)
		os.Exit(1)
	}
}
