// Package cmd wires the mirra-bridge command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirra-world/claude-bridge/internal/config"
	"github.com/mirra-world/claude-bridge/internal/creds"
	"github.com/mirra-world/claude-bridge/pkg/logger"
	"github.com/mirra-world/claude-bridge/pkg/mirra"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:           "mirra-bridge",
	Short:         "Bridge Claude Code sessions to your Mirra groups",
	Long:          "mirra-bridge runs Claude Code sessions on this machine and relays their progress and results to a Mirra messaging group, so you can start and follow coding sessions from your phone.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable verbose logging")
}

// loadConfig loads the bridge config with the --debug flag applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	return cfg, nil
}

// initLogging sets up file logging under the bridge home. Hook invocations
// pass console=false so nothing leaks onto the CLI's stdio.
func initLogging(cfg *config.Config) error {
	return logger.Init(cfg.LogsDir(), cfg.Debug)
}

// machineIdentity loads (or mints) the machine id and secret key.
func machineIdentity(cfg *config.Config) (machineID string, secret []byte, err error) {
	machineID, err = creds.GetOrCreateMachineID(cfg.MachineIDPath())
	if err != nil {
		return "", nil, fmt.Errorf("failed to load machine id: %w", err)
	}
	secret, err = creds.GetOrCreateSecretKey(cfg.MachineKeyPath())
	if err != nil {
		return "", nil, fmt.Errorf("failed to load machine key: %w", err)
	}
	return machineID, secret, nil
}

// apiClient builds a Mirra client from the stored, sealed API key.
func apiClient(cfg *config.Config, secret []byte) (*mirra.Client, string, error) {
	apiKey, err := creds.LoadAPIKey(cfg.CredentialsPath(), secret)
	if err != nil {
		return nil, "", err
	}
	return mirra.NewClient(apiKey, mirra.WithBaseURL(cfg.APIBaseURL)), apiKey, nil
}
