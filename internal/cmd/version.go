package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mirra-world/claude-bridge/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bridge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mirra-bridge", version.RichVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
