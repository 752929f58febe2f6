package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mirra-world/claude-bridge/internal/flow"
	"github.com/mirra-world/claude-bridge/internal/marker"
	"github.com/mirra-world/claude-bridge/internal/metrics"
	"github.com/mirra-world/claude-bridge/internal/notes"
	"github.com/mirra-world/claude-bridge/internal/notify"
	"github.com/mirra-world/claude-bridge/internal/progress"
	"github.com/mirra-world/claude-bridge/internal/realtime"
	"github.com/mirra-world/claude-bridge/internal/session"
	"github.com/mirra-world/claude-bridge/pkg/logger"
)

var (
	runDir         string
	runInteractive bool
	runMessageID   string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run the bridge daemon, optionally starting a session right away",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := ""
		if len(args) > 0 {
			prompt = args[0]
		}
		return runBridge(cmd.Context(), prompt)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runDir, "dir", "d", ".", "working directory for the initial session")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "attach the initial session to this terminal")
	runCmd.Flags().StringVar(&runMessageID, "message-id", "", "group message the initial session reports to")
	rootCmd.AddCommand(runCmd)
}

func runBridge(ctx context.Context, prompt string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer logger.Sync()

	machineID, secret, err := machineIdentity(cfg)
	if err != nil {
		return err
	}
	client, apiKey, err := apiClient(cfg, secret)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	markers := marker.NewStore(cfg.MarkersDir(), secret)
	tracker := progress.NewTracker(cfg.ProgressDir(), cfg.ProgressInterval)
	flows := flow.NewManager(client, cfg.GroupID, machineID)

	var noteMgr *notes.Manager
	if cfg.NotesEnabled {
		noteMgr = notes.NewManager(client, machineID)
		if err := noteMgr.EnsureNote(ctx); err != nil {
			logger.Warnf("activity notes disabled: %v", err)
			noteMgr = nil
		}
	}

	mgr := session.NewManager(cfg, client, apiKey, machineID, markers, tracker, flows, noteMgr)

	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		pusher, err := notify.NewPushover(notify.PushoverConfig{
			Token:    cfg.PushoverToken,
			UserKey:  cfg.PushoverUser,
			Cooldown: time.Minute,
		})
		if err != nil {
			logger.Warnf("pushover disabled: %v", err)
		} else {
			mgr.SetPushNotifier(pusher)
		}
	}

	// Prune leftovers from a crashed bridge before accepting work.
	if err := mgr.RecoverStale(ctx); err != nil {
		logger.Warnf("stale session recovery failed: %v", err)
	}

	rt := realtime.NewClient(cfg.RealtimeURL, apiKey, machineID)
	rt.On(realtime.EventMessage, func(data map[string]any) {
		event := realtime.ParseMessageEvent(data)
		if err := mgr.HandleInbound(ctx, event.MessageID, event.SessionID, event.WorkDir, event.Content); err != nil {
			logger.Warnf("failed to handle inbound message: %v", err)
		}
	})
	if err := rt.Connect(); err != nil {
		return err
	}
	defer rt.Close()
	if !rt.WaitForConnect(10 * time.Second) {
		logger.Warnf("realtime channel not connected yet, continuing in background")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return metrics.Serve(gctx, cfg.MetricsListen)
	})

	g.Go(func() error {
		// Progress files are written by hook subprocesses; watching them
		// keeps the server-side liveness signal fresh while hooks fire.
		return progress.Watch(gctx, tracker.Dir(), func(sessionID string) {
			if err := rt.KeepAlive(mgr.Registry().IDs()); err != nil {
				logger.Debugf("keepalive failed: %v", err)
			}
		})
	})

	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
		select {
		case s := <-sig:
			logger.Infof("received %s, shutting down", s)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if prompt != "" || runInteractive {
		if _, err := mgr.Start(ctx, session.StartParams{
			WorkDir:     runDir,
			Prompt:      prompt,
			MessageID:   runMessageID,
			Interactive: runInteractive || cfg.Interactive,
		}); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}

	<-gctx.Done()
	mgr.StopAll()
	mgr.Wait()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
