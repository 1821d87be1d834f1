package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show login state and session health",
	Args:  cobra.NoArgs,
	RunE:  statusCmdRun,
}

type statusFlags struct {
	check bool
}

var statusArgs statusFlags

func init() {
	statusCmd.Flags().BoolVar(&statusArgs.check, "check", false,
		"Also verify the session against the server.")
	rootCmd.AddCommand(statusCmd)
}

func statusCmdRun(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newLoaderApp()
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()

	if app.client.LoggedIn() {
		fmt.Fprintf(out, "logged in:  yes (%s)\n", app.client.StoredLicenseKey())
	} else {
		fmt.Fprintln(out, "logged in:  no")
	}

	if domain := app.client.CustomDomain(); domain != "" {
		fmt.Fprintf(out, "api domain: %s (custom)\n", domain)
	}

	if !statusArgs.check {
		fmt.Fprintf(out, "session:    %s\n", app.client.SessionState())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	if err := app.client.Initialize(ctx); err != nil {
		return fmt.Errorf("session check failed: %w", err)
	}
	if app.client.IsSessionValid(ctx) {
		fmt.Fprintln(out, "session:    valid")
	} else {
		fmt.Fprintln(out, "session:    invalid")
	}
	return nil
}
