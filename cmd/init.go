package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdps/dashboard-client/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  "Create the configuration file for the dashboard client",
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir := config.GetConfigDir()
		configPath := config.GetConfigPath()

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration already exists at %s\n\nTo reconfigure, either:\n  1. Edit the file directly, or\n  2. Delete it and run 'mdps-dash init' again, or\n  3. Use 'mdps-dash config set <key> <value>' to update specific values", configPath)
		}

		// Create default config
		cfg := &config.Config{}
		cfg.Server.URL = config.DefaultServerURL
		cfg.Polling.PresenceInterval = config.DefaultPresenceInterval
		cfg.Polling.MessageInterval = config.DefaultMessageInterval
		cfg.Logging.Level = config.DefaultLogLevel

		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		cmd.Printf("Configuration initialized at %s\n", configDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
