package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mirra-world/claude-bridge/internal/hook"
	"github.com/mirra-world/claude-bridge/internal/marker"
	"github.com/mirra-world/claude-bridge/internal/progress"
	"github.com/mirra-world/claude-bridge/pkg/logger"
)

var hookCmd = &cobra.Command{
	Use:    "hook <event>",
	Short:  "Handle a Claude Code hook event (invoked by the CLI, not by hand)",
	Args:   cobra.ExactArgs(1),
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, event string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// File logging only: the CLI owns this process's stdio.
	if err := logger.Init(cfg.LogsDir(), false); err != nil {
		return err
	}
	defer logger.Sync()

	_, secret, err := machineIdentity(cfg)
	if err != nil {
		return err
	}

	runner := hook.NewRunner(
		marker.NewStore(cfg.MarkersDir(), secret),
		progress.NewTracker(cfg.ProgressDir(), cfg.ProgressInterval),
		cfg.APIBaseURL,
	)
	if err := runner.Run(cmd.Context(), event, os.Stdin); err != nil {
		// Hook failures must never break the CLI run.
		logger.Warnf("hook %s failed: %v", event, err)
	}
	return nil
}
