package main

import (
	"context"
	"fmt"
	"os/user"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report [feature]",
	Short: "Send a best-effort usage event to the server",
	Args:  cobra.ExactArgs(1),
	RunE:  reportCmdRun,
}

type reportFlags struct {
	data string
}

var reportArgs reportFlags

func init() {
	reportCmd.Flags().StringVar(&reportArgs.data, "data", "",
		"Additional data to attach to the event (defaults to the OS user name).")
	rootCmd.AddCommand(reportCmd)
}

func reportCmdRun(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newLoaderApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	if err := app.client.Initialize(ctx); err != nil {
		return err
	}

	data := reportArgs.data
	if data == "" {
		if u, err := user.Current(); err == nil {
			data = u.Username
		}
	}

	app.client.ReportUsage(ctx, args[0], data)

	// cleanup waits for the report before the process exits.
	fmt.Fprintln(cmd.OutOrStdout(), "✔ usage event queued")
	return nil
}
