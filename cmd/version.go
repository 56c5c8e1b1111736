package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the client version and, when the server is reachable, the server version.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "mdps-dash version %s\n", version)

		a, err := newApp()
		if err != nil {
			return nil // config problems are not a version error
		}
		if health, err := a.client.Health(cmd.Context()); err == nil && health.Version != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "server version %s (%s)\n", health.Version, health.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
