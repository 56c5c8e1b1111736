package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdps/dashboard-client/internal/apperr"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	Long:  "Validate the stored session against the server and print the resolved identity and role.",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if !a.session.EnsureAuthenticated(cmd.Context()) {
		return fmt.Errorf("%w: please run 'mdps-dash login' first", apperr.ErrNotAuthenticated)
	}

	user := a.session.CurrentUser()
	fmt.Fprintf(cmd.OutOrStdout(), "Name:   %s\n", user.DisplayName())
	fmt.Fprintf(cmd.OutOrStdout(), "Email:  %s\n", user.Email)
	fmt.Fprintf(cmd.OutOrStdout(), "Role:   %s\n", user.Role())
	fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", user.Status)
	return nil
}
