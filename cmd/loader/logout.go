package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored license key and session",
	Args:  cobra.NoArgs,
	RunE:  logoutCmdRun,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func logoutCmdRun(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newLoaderApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	if err := app.client.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✔ logged out")
	return nil
}
