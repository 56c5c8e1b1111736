package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdps/dashboard-client/internal/api"
	"github.com/mdps/dashboard-client/internal/config"
	"github.com/mdps/dashboard-client/internal/keychain"
	"github.com/mdps/dashboard-client/internal/logging"
	"github.com/mdps/dashboard-client/internal/session"
)

const version = "0.1.0"

// keychainFactory allows injecting a mock keychain in tests
var keychainFactory func() keychain.Keychain = func() keychain.Keychain {
	return keychain.NewSystemKeychain()
}

var rootCmd = &cobra.Command{
	Use:   "mdps-dash",
	Short: "Weather-station dashboard client",
	Long:  "Command-line client for the MDPS weather-station monitoring dashboard: authentication, account inspection and the support chat.",
}

// app bundles the wired-up client stack for one command invocation
type app struct {
	cfg     *config.Config
	client  *api.Client
	session *session.Manager
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\n\nRun 'mdps-dash init' to create the configuration file", err)
	}

	log := logging.New(cfg.Logging.Level)
	client := api.NewClient(cfg.Server.URL, log)
	mgr := session.NewManager(client, keychainFactory(), log)

	return &app{cfg: cfg, client: client, session: mgr}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
