package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-validate the stored license key",
	Args:  cobra.NoArgs,
	RunE:  validateCmdRun,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateCmdRun(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newLoaderApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	result, err := app.client.ValidateCurrentLicense(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✔ license valid, %d days remaining (expires %s)\n",
		result.RemainingDays(), result.ExpiryDate.Format("2006-01-02"))
	return nil
}
