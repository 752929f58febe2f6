package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mirra-world/claude-bridge/internal/creds"
	"github.com/mirra-world/claude-bridge/internal/marker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge configuration and credential state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Bridge home: ", cfg.BridgeHome)
	fmt.Println("API URL:     ", cfg.APIBaseURL)
	fmt.Println("Group:       ", valueOr(cfg.GroupID, "(not set)"))
	fmt.Println("CLI binary:  ", cfg.ClaudeBin)

	machineID, secret, err := machineIdentity(cfg)
	if err != nil {
		return err
	}
	fmt.Println("Machine id:  ", machineID)

	if _, err := creds.LoadAPIKey(cfg.CredentialsPath(), secret); err != nil {
		if errors.Is(err, creds.ErrNoCredentials) {
			fmt.Println("Credentials:  none (run `mirra-bridge login`)")
		} else {
			fmt.Println("Credentials:  unreadable:", err)
		}
	} else {
		fmt.Println("Credentials:  stored")
	}

	markers, err := marker.NewStore(cfg.MarkersDir(), secret).List()
	if err == nil {
		fmt.Printf("Markers:      %d session(s) registered\n", len(markers))
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
