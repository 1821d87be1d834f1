package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Show or change the API domain override",
	Args:  cobra.NoArgs,
	RunE:  domainCmdRun,
}

var domainSetCmd = &cobra.Command{
	Use:   "set [domain]",
	Short: "Route all API traffic through a custom domain",
	Args:  cobra.ExactArgs(1),
	RunE:  domainSetCmdRun,
}

var domainClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Revert to the built-in API endpoints",
	Args:  cobra.NoArgs,
	RunE:  domainClearCmdRun,
}

func init() {
	domainCmd.AddCommand(domainSetCmd)
	domainCmd.AddCommand(domainClearCmd)
	rootCmd.AddCommand(domainCmd)
}

func domainCmdRun(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newLoaderApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if domain := app.client.CustomDomain(); domain != "" {
		fmt.Fprintln(cmd.OutOrStdout(), domain)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "(using built-in endpoints)")
	}
	return nil
}

func domainSetCmdRun(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newLoaderApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.client.SetCustomDomain(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✔ API domain set to %s\n", app.client.CustomDomain())
	return nil
}

func domainClearCmdRun(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newLoaderApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.client.SetCustomDomain(context.Background(), ""); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✔ reverted to built-in endpoints")
	return nil
}
