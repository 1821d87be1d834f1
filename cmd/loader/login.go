package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [license-key]",
	Short: "Validate a license key and store it for future runs",
	Args:  cobra.ExactArgs(1),
	RunE:  loginCmdRun,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func loginCmdRun(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newLoaderApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	result, err := app.client.Login(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✔ license validated")
	fmt.Fprintf(cmd.OutOrStdout(), "  expires:    %s (%d days remaining)\n",
		result.ExpiryDate.Format("2006-01-02"), result.RemainingDays())
	fmt.Fprintf(cmd.OutOrStdout(), "  registered: %s\n", result.RegistrationDate)
	return nil
}
