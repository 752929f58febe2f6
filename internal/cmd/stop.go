package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mirra-world/claude-bridge/internal/flow"
	"github.com/mirra-world/claude-bridge/internal/marker"
	"github.com/mirra-world/claude-bridge/internal/progress"
)

var stopDir string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the session running in a directory",
	Long:  "Stop signals the bridge supervising the session in --dir. If that bridge is gone (crashed or killed), the leftover marker and routing flow are cleaned up instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStop(cmd)
	},
}

func init() {
	stopCmd.Flags().StringVarP(&stopDir, "dir", "d", ".", "working directory of the session")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	machineID, secret, err := machineIdentity(cfg)
	if err != nil {
		return err
	}

	workDir, err := filepath.Abs(stopDir)
	if err != nil {
		return err
	}

	markers := marker.NewStore(cfg.MarkersDir(), secret)
	mk, ok, err := markers.Lookup(workDir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no session registered in %s", workDir)
	}

	if proc, err := os.FindProcess(mk.PID); err == nil {
		if err := proc.Signal(syscall.SIGTERM); err == nil {
			fmt.Printf("Sent stop signal to bridge (pid %d) for session %s\n", mk.PID, mk.SessionID)
			return nil
		}
	}

	// The supervising bridge is gone; clean up its leftovers ourselves.
	client, _, err := apiClient(cfg, secret)
	if err != nil {
		return err
	}
	flows := flow.NewManager(client, mk.GroupID, machineID)
	if err := flows.Cleanup(cmd.Context(), mk.FlowID); err != nil {
		return err
	}
	if err := markers.Remove(workDir); err != nil {
		return err
	}
	_ = progress.NewTracker(cfg.ProgressDir(), cfg.ProgressInterval).Remove(mk.SessionID)
	fmt.Printf("Cleaned up stale session %s\n", mk.SessionID)
	return nil
}
