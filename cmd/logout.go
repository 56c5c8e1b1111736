package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored authentication credentials",
	Long:  "Logout from the dashboard by clearing the stored token pair and session state.",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	a.session.Logout()

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully. Authentication credentials removed.")
	return nil
}
