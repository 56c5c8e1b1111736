package main

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mdps/dashboard-client/internal/apperr"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the dashboard server",
	Long:  "Login to the dashboard server and store the token pair securely.",
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (will prompt if not provided)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	// Prompt for email if not provided
	if loginEmail == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Email: ")
		_, err := fmt.Fscanln(cmd.InOrStdin(), &loginEmail)
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}

	// Prompt for password if not provided
	if loginPassword == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.OutOrStdout()) // newline after password
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		loginPassword = string(passwordBytes)
	}

	user, err := a.session.Login(cmd.Context(), loginEmail, loginPassword)

	// Reset flags for reuse in tests
	loginEmail = ""
	loginPassword = ""

	if err != nil {
		if errors.Is(err, apperr.ErrAccountSuspended) {
			return errors.New("your account has been suspended. Please contact support")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Login successful! Signed in as %s (%s).\n", user.DisplayName(), user.Role())
	return nil
}
