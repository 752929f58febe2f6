package cmd

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirra-world/claude-bridge/internal/marker"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions registered on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessions()
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, secret, err := machineIdentity(cfg)
	if err != nil {
		return err
	}

	markers, err := marker.NewStore(cfg.MarkersDir(), secret).List()
	if err != nil {
		return err
	}
	if len(markers) == 0 {
		fmt.Println("No sessions registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tDIRECTORY\tPID\tALIVE\tSTARTED")
	for _, mk := range markers {
		alive := "no"
		if proc, err := os.FindProcess(mk.PID); err == nil {
			if err := proc.Signal(syscall.Signal(0)); err == nil || errors.Is(err, syscall.EPERM) {
				alive = "yes"
			}
		}
		started := "-"
		if mk.CreatedAtMs > 0 {
			started = time.UnixMilli(mk.CreatedAtMs).Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", mk.SessionID, mk.WorkDir, mk.PID, alive, started)
	}
	return w.Flush()
}
