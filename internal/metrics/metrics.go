// Package metrics exposes bridge counters over a Prometheus endpoint.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirra-world/claude-bridge/pkg/logger"
)

var (
	// ActiveSessions is the number of sessions currently running.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mirra_bridge",
		Name:      "active_sessions",
		Help:      "Number of bridge sessions currently running.",
	})

	// SessionsStarted counts sessions spawned since bridge start.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mirra_bridge",
		Name:      "sessions_started_total",
		Help:      "Total bridge sessions started.",
	})

	// SessionsCompleted counts sessions by final outcome.
	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mirra_bridge",
		Name:      "sessions_completed_total",
		Help:      "Total bridge sessions finished, by outcome.",
	}, []string{"outcome"}) // "success", "error", "killed"

	// MessagesSent counts messages relayed to the group.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mirra_bridge",
		Name:      "messages_sent_total",
		Help:      "Total messages relayed to the messaging group.",
	})

	// ProgressNotifications counts progress updates pushed by hooks.
	ProgressNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mirra_bridge",
		Name:      "progress_notifications_total",
		Help:      "Total progress notifications delivered.",
	})

	// FlowCleanups counts routing flow deletions, including recovery.
	FlowCleanups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mirra_bridge",
		Name:      "flow_cleanups_total",
		Help:      "Total routing flows deleted.",
	})

	// StaleMarkersRecovered counts crash-recovery marker prunes.
	StaleMarkersRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mirra_bridge",
		Name:      "stale_markers_recovered_total",
		Help:      "Total stale session markers pruned at startup.",
	})

	// SessionDuration observes wall-clock session lifetimes.
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mirra_bridge",
		Name:      "session_duration_seconds",
		Help:      "Bridge session duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
)

// Serve runs the /metrics endpoint on addr until ctx is cancelled. An empty
// addr disables the endpoint.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("metrics listening on %s", listener.Addr())
	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
