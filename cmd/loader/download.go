package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download [file-id]",
	Short: "Download a server-hosted file over the active session",
	Args:  cobra.ExactArgs(1),
	RunE:  downloadCmdRun,
}

type downloadFlags struct {
	output string
}

var downloadArgs downloadFlags

func init() {
	downloadCmd.Flags().StringVarP(&downloadArgs.output, "output", "o", "",
		"Write the file to this path instead of stdout.")
	rootCmd.AddCommand(downloadCmd)
}

func downloadCmdRun(cmd *cobra.Command, args []string) error {
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

	data, err := app.client.DownloadFile(ctx, args[0])
	if err != nil {
		return err
	}

	if downloadArgs.output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(downloadArgs.output, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", downloadArgs.output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✔ wrote %d bytes to %s\n", len(data), downloadArgs.output)
	return nil
}
