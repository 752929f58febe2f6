// Package hook implements the `mirra-bridge hook` subprocess. The CLI
// invokes it on lifecycle events with a JSON payload on stdin; the marker
// file left by the supervising bridge provides the API key and message
// routing so the short-lived hook process can report progress on its own.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mirra-world/claude-bridge/internal/marker"
	"github.com/mirra-world/claude-bridge/internal/metrics"
	"github.com/mirra-world/claude-bridge/internal/progress"
	"github.com/mirra-world/claude-bridge/pkg/logger"
	"github.com/mirra-world/claude-bridge/pkg/mirra"
)

// Payload is the hook input the CLI writes to stdin.
type Payload struct {
	SessionID     string `json:"session_id"`
	CWD           string `json:"cwd"`
	HookEventName string `json:"hook_event_name"`
	Message       string `json:"message,omitempty"`
	ToolName      string `json:"tool_name,omitempty"`
}

// Runner executes hook events.
type Runner struct {
	markers  *marker.Store
	progress *progress.Tracker

	// newClient is swappable for tests.
	newClient func(apiKey string) *mirra.Client
}

// NewRunner builds a hook runner talking to the given API base URL.
func NewRunner(markers *marker.Store, tracker *progress.Tracker, baseURL string) *Runner {
	return &Runner{
		markers:  markers,
		progress: tracker,
		newClient: func(apiKey string) *mirra.Client {
			return mirra.NewClient(apiKey, mirra.WithBaseURL(baseURL))
		},
	}
}

// Run handles one hook invocation. A missing marker means the session was
// not started by the bridge; the hook exits silently so it never breaks a
// plain CLI run.
func (r *Runner) Run(ctx context.Context, event string, stdin io.Reader) error {
	var payload Payload
	if err := json.NewDecoder(stdin).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode hook payload: %w", err)
	}
	if payload.CWD == "" {
		return nil
	}

	mk, ok, err := r.markers.Lookup(payload.CWD)
	if err != nil {
		logger.Debugf("hook: marker lookup failed: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	client := r.newClient(mk.APIKey)

	switch normalizeEvent(event) {
	case "posttooluse", "progress":
		return r.reportProgress(ctx, client, mk, payload)
	case "notification":
		return r.sendNotification(ctx, client, mk, payload)
	case "stop":
		return r.finish(ctx, client, mk)
	default:
		logger.Debugf("hook: ignoring event %q", event)
		return nil
	}
}

// normalizeEvent maps "PostToolUse", "post-tool-use" and friends onto one
// form.
func normalizeEvent(event string) string {
	event = strings.ToLower(event)
	event = strings.ReplaceAll(event, "-", "")
	event = strings.ReplaceAll(event, "_", "")
	return event
}

// reportProgress bumps the step counter and, at most once per interval,
// updates the originating group message in place.
func (r *Runner) reportProgress(ctx context.Context, client *mirra.Client, mk marker.Marker, payload Payload) error {
	st, err := r.progress.Bump(mk.SessionID)
	if err != nil {
		return fmt.Errorf("failed to bump progress: %w", err)
	}

	now := time.Now()
	if !r.progress.ShouldNotify(st, now) {
		return nil
	}

	content := fmt.Sprintf("⏳ Working… %d steps", st.Steps)
	if payload.ToolName != "" {
		content += " (last: " + payload.ToolName + ")"
	}

	if mk.MessageID != "" {
		_, err = client.Messages.Update(ctx, mk.MessageID, mirra.UpdateMessageParams{Content: content})
	} else {
		_, err = client.Messages.Send(ctx, mirra.SendMessageParams{GroupID: mk.GroupID, Content: content})
	}
	if err != nil {
		// Notification failed; leave state so the next hook retries.
		return fmt.Errorf("failed to deliver progress update: %w", err)
	}

	if err := r.progress.MarkNotified(mk.SessionID, st.Steps, now); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	metrics.ProgressNotifications.Inc()
	return nil
}

// sendNotification forwards a CLI notification (permission prompt, idle
// warning) to the group.
func (r *Runner) sendNotification(ctx context.Context, client *mirra.Client, mk marker.Marker, payload Payload) error {
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		return nil
	}
	_, err := client.Messages.Send(ctx, mirra.SendMessageParams{
		GroupID: mk.GroupID,
		Content: "🔔 " + message,
		Meta:    map[string]any{"sessionId": mk.SessionID},
	})
	return err
}

// finish marks the session's progress state finished so later hook events
// stay silent. The supervising bridge owns the final summary message.
func (r *Runner) finish(ctx context.Context, client *mirra.Client, mk marker.Marker) error {
	if err := r.progress.Finish(mk.SessionID); err != nil {
		logger.Debugf("hook: failed to finish progress state: %v", err)
	}
	if mk.MessageID == "" {
		return nil
	}
	_, err := client.Messages.Update(ctx, mk.MessageID, mirra.UpdateMessageParams{
		Content: "✅ Session finished",
	})
	if err != nil && !mirra.IsNotFound(err) {
		return err
	}
	return nil
}
