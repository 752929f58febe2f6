package cmd

import (
	"fmt"
	"os"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mirra-world/claude-bridge/internal/creds"
	"github.com/mirra-world/claude-bridge/pkg/mirra"
)

var loginAPIKey string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store your Mirra API key and pair this machine with the app",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin(cmd)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "Mirra API key (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	apiKey := strings.TrimSpace(loginAPIKey)
	if apiKey == "" {
		fmt.Print("Mirra API key: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		apiKey = strings.TrimSpace(string(raw))
	}
	if apiKey == "" {
		return fmt.Errorf("no API key provided")
	}

	// Verify the key before sealing it to disk.
	client := mirra.NewClient(apiKey, mirra.WithBaseURL(cfg.APIBaseURL))
	if _, err := client.Flows.List(cmd.Context()); err != nil {
		return fmt.Errorf("API key check failed: %w", err)
	}

	machineID, secret, err := machineIdentity(cfg)
	if err != nil {
		return err
	}
	if err := creds.SaveAPIKey(cfg.CredentialsPath(), apiKey, secret); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	pairingLink := "https://mirra.world/pair?machine=" + machineID
	qr, err := qrcode.New(pairingLink, qrcode.Medium)
	if err == nil {
		fmt.Println(qr.ToSmallString(false))
	}
	fmt.Println("Machine paired:", machineID)
	fmt.Println("Scan the code in the Mirra app or open:", pairingLink)
	return nil
}
