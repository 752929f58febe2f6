package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mirra-world/claude-bridge/internal/claude"
	"github.com/mirra-world/claude-bridge/internal/config"
	"github.com/mirra-world/claude-bridge/internal/flow"
	"github.com/mirra-world/claude-bridge/internal/marker"
	"github.com/mirra-world/claude-bridge/internal/metrics"
	"github.com/mirra-world/claude-bridge/internal/notes"
	"github.com/mirra-world/claude-bridge/internal/notify"
	"github.com/mirra-world/claude-bridge/internal/progress"
	"github.com/mirra-world/claude-bridge/pkg/logger"
	"github.com/mirra-world/claude-bridge/pkg/mirra"
)

// remoteTimeout bounds the API calls made during relay and cleanup.
const remoteTimeout = 10 * time.Second

// Manager starts, supervises and cleans up bridge sessions.
type Manager struct {
	cfg       *config.Config
	client    *mirra.Client
	apiKey    string
	machineID string

	markers  *marker.Store
	progress *progress.Tracker
	flows    *flow.Manager
	notes    *notes.Manager   // nil when notes are disabled
	pusher   *notify.Pushover // nil when pushover is not configured
	registry *Registry

	wg sync.WaitGroup
}

// NewManager wires a session manager from its collaborators.
func NewManager(cfg *config.Config, client *mirra.Client, apiKey, machineID string,
	markers *marker.Store, tracker *progress.Tracker, flows *flow.Manager, noteMgr *notes.Manager) *Manager {
	return &Manager{
		cfg:       cfg,
		client:    client,
		apiKey:    apiKey,
		machineID: machineID,
		markers:   markers,
		progress:  tracker,
		flows:     flows,
		notes:     noteMgr,
		registry:  NewRegistry(),
	}
}

// Registry exposes the live session registry.
func (m *Manager) Registry() *Registry { return m.registry }

// SetPushNotifier enables out-of-band push notifications for failed
// sessions.
func (m *Manager) SetPushNotifier(p *notify.Pushover) { m.pusher = p }

// StartParams describe a session to start.
type StartParams struct {
	WorkDir     string
	Prompt      string
	MessageID   string
	Interactive bool
	ResumeToken string
}

// Start spawns a new bridge session: routing flow, CLI process, recovery
// marker and progress state, then hands off to the supervision loop.
func (m *Manager) Start(ctx context.Context, params StartParams) (*Session, error) {
	workDir, err := filepath.Abs(params.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("invalid work dir: %w", err)
	}
	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("work dir does not exist: %s", workDir)
	}
	if existing, ok := m.registry.ByWorkDir(workDir); ok {
		return nil, fmt.Errorf("session %s already running in %s", existing.ID, workDir)
	}

	s := &Session{
		ID:        uuid.NewString(),
		WorkDir:   workDir,
		Prompt:    params.Prompt,
		MessageID: params.MessageID,
		CreatedAt: time.Now(),
		state:     StateStarting,
		done:      make(chan struct{}),
	}

	flowID, err := m.flows.Ensure(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.FlowID = flowID

	proc, err := claude.NewProcess(claude.Options{
		Bin:         m.cfg.ClaudeBin,
		WorkDir:     workDir,
		Prompt:      params.Prompt,
		ResumeToken: params.ResumeToken,
		Interactive: params.Interactive,
	})
	if err != nil {
		m.cleanupFlow(s)
		return nil, err
	}
	if err := proc.Start(); err != nil {
		m.cleanupFlow(s)
		return nil, fmt.Errorf("failed to start CLI: %w", err)
	}
	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()

	if err := m.markers.Register(marker.Marker{
		SessionID: s.ID,
		GroupID:   m.cfg.GroupID,
		MessageID: s.MessageID,
		FlowID:    s.FlowID,
		APIKey:    m.apiKey,
		WorkDir:   workDir,
		PID:       os.Getpid(),
	}); err != nil {
		// The session can run without a marker, hooks just lose context.
		logger.Errorf("failed to register session marker: %v", err)
	}
	if err := m.progress.Init(s.ID, s.MessageID); err != nil {
		logger.Warnf("failed to init progress state: %v", err)
	}

	m.registry.Add(s)
	s.setState(StateRunning)
	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Inc()
	m.noteEvent(fmt.Sprintf("session %s started in %s", s.ID, workDir))
	logger.Infof("session %s started (pid: %d, dir: %s)", s.ID, proc.PID(), workDir)

	m.wg.Add(1)
	go m.supervise(s)
	return s, nil
}

// supervise relays the session's output and runs queued follow-ups as
// resumed CLI invocations until nothing is left, then finishes the session.
func (m *Manager) supervise(s *Session) {
	defer m.wg.Done()

	proc := s.Process()
	stopTail := make(chan struct{})
	if proc.Interactive() {
		go m.tailInteractive(s, proc, stopTail)
	}

	outcome, lastResult := m.superviseRun(s, proc)
	close(stopTail)

	for outcome == "success" {
		queued := s.TakeQueued()
		if len(queued) == 0 {
			break
		}
		proc, err := m.resume(s, strings.Join(queued, "\n"))
		if err != nil {
			logger.Errorf("session %s: failed to resume for follow-up: %v", s.ID, err)
			outcome = "error"
			break
		}
		outcome, lastResult = m.superviseRun(s, proc)
	}

	m.finish(s, outcome, lastResult)
}

// superviseRun consumes one CLI run to completion.
func (m *Manager) superviseRun(s *Session, proc *claude.Process) (string, *claude.StreamEvent) {
	var result *claude.StreamEvent

	for event := range proc.Events() {
		switch event.Type {
		case "assistant":
			if text := event.AssistantText(); text != "" {
				m.relay(s, text)
			}
		case "result":
			ev := event
			result = &ev
		}
	}

	err := proc.Wait()
	if id := proc.SessionID(); id != "" {
		s.mu.Lock()
		s.claudeID = id
		s.mu.Unlock()
	}

	if s.State() == StateStopping {
		return "killed", result
	}
	if err != nil || (result != nil && result.IsError) {
		if err != nil {
			logger.Warnf("session %s: CLI exited with error: %v", s.ID, err)
		}
		return "error", result
	}
	return "success", result
}

// tailInteractive recovers the CLI session id from the session file the CLI
// creates and relays its assistant messages. Interactive sessions have no
// stream-json stdout; the session file is the only way to observe them.
func (m *Manager) tailInteractive(s *Session, proc *claude.Process, stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var claudeID string
	for claudeID == "" {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if id, ok := claude.FindNewestSession(s.WorkDir, s.CreatedAt); ok {
				claudeID = id
			}
		}
	}
	proc.SetSessionID(claudeID)
	s.mu.Lock()
	s.claudeID = claudeID
	s.mu.Unlock()
	logger.Debugf("session %s: tailing CLI session %s", s.ID, claudeID)

	scanner := claude.NewScanner(s.WorkDir, claudeID)
	scanner.Start()
	defer scanner.Stop()

	for {
		select {
		case <-stop:
			return
		case msg := <-scanner.Messages():
			if msg.Type != "assistant" {
				continue
			}
			if text := msg.AssistantText(); text != "" {
				m.relay(s, text)
			}
		}
	}
}

// resume spawns a resumed CLI run carrying the queued follow-up prompt.
func (m *Manager) resume(s *Session, prompt string) (*claude.Process, error) {
	proc, err := claude.NewProcess(claude.Options{
		Bin:         m.cfg.ClaudeBin,
		WorkDir:     s.WorkDir,
		Prompt:      prompt,
		ResumeToken: s.ClaudeID(),
	})
	if err != nil {
		return nil, err
	}
	if err := proc.Start(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()
	logger.Infof("session %s resumed for follow-up (pid: %d)", s.ID, proc.PID())
	return proc, nil
}

// finish tears a session down exactly once: final group message, routing
// flow, marker, progress state, activity note.
func (m *Manager) finish(s *Session, outcome string, result *claude.StreamEvent) {
	s.finishOnce.Do(func() {
		if outcome == "failed" || outcome == "error" {
			s.setState(StateFailed)
		} else {
			s.setState(StateStopped)
		}

		m.sendFinalMessage(s, outcome, result)
		m.cleanupFlow(s)
		if err := m.markers.Remove(s.WorkDir); err != nil {
			logger.Warnf("failed to remove session marker: %v", err)
		}
		if err := m.progress.Finish(s.ID); err == nil {
			_ = m.progress.Remove(s.ID)
		}
		m.registry.Remove(s.ID)

		metrics.ActiveSessions.Dec()
		metrics.SessionsCompleted.WithLabelValues(outcome).Inc()
		metrics.SessionDuration.Observe(time.Since(s.CreatedAt).Seconds())

		if outcome == "error" && m.pusher != nil {
			ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
			if err := m.pusher.SessionEvent(ctx, s.ID, "Claude session failed",
				fmt.Sprintf("Session in %s failed after %s", s.WorkDir, time.Since(s.CreatedAt).Round(time.Second))); err != nil {
				logger.Debugf("push notification failed: %v", err)
			}
			cancel()
		}

		m.noteEvent(fmt.Sprintf("session %s finished (%s) after %s", s.ID, outcome, time.Since(s.CreatedAt).Round(time.Second)))
		m.flushNotes()
		logger.Infof("session %s finished: %s", s.ID, outcome)
		close(s.done)
	})
}

// sendFinalMessage posts the run summary to the group.
func (m *Manager) sendFinalMessage(s *Session, outcome string, result *claude.StreamEvent) {
	var summary string
	switch {
	case result != nil && !result.IsError:
		summary = fmt.Sprintf("✅ Done (%d turns, %s, $%.2f)",
			result.NumTurns, (time.Duration(result.DurationMs) * time.Millisecond).Round(time.Second), result.TotalCostUSD)
		if text := strings.TrimSpace(result.Result); text != "" {
			summary = text + "\n\n" + summary
		}
	case outcome == "killed":
		summary = "🛑 Session stopped"
	case outcome == "success":
		// Interactive sessions produce no result event.
		summary = "✅ Session ended"
	default:
		summary = "❌ Session failed"
		if result != nil && strings.TrimSpace(result.Result) != "" {
			summary += ": " + strings.TrimSpace(result.Result)
		}
	}
	m.relay(s, summary)
}

// relay sends text to the session's messaging group.
func (m *Manager) relay(s *Session, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	_, err := m.client.Messages.Send(ctx, mirra.SendMessageParams{
		GroupID: m.cfg.GroupID,
		Content: text,
		Meta: map[string]any{
			"sessionId": s.ID,
			"machineId": m.machineID,
		},
	})
	if err != nil {
		logger.Warnf("session %s: failed to relay message: %v", s.ID, err)
		return
	}
	metrics.MessagesSent.Inc()
}

// HandleInbound routes a message from the realtime channel: into the pty of
// an interactive session, onto the follow-up queue of a headless one, or
// into a brand-new session when the directory has none.
func (m *Manager) HandleInbound(ctx context.Context, messageID, sessionID, workDir, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	s, ok := m.registry.Get(sessionID)
	if !ok && workDir != "" {
		s, ok = m.registry.ByWorkDir(workDir)
	}

	if ok {
		if s.Interactive() {
			return s.Process().SendLine(content)
		}
		s.QueueInput(content)
		logger.Debugf("session %s: queued follow-up", s.ID)
		return nil
	}

	if workDir == "" {
		return fmt.Errorf("no session for message %s and no work dir to start one", messageID)
	}
	_, err := m.Start(ctx, StartParams{
		WorkDir:   workDir,
		Prompt:    content,
		MessageID: messageID,
	})
	return err
}

// Stop requests a graceful stop of one session.
func (m *Manager) Stop(sessionID string) error {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return fmt.Errorf("no such session: %s", sessionID)
	}
	s.setState(StateStopping)
	if proc := s.Process(); proc != nil {
		return proc.Kill()
	}
	return nil
}

// StopAll stops every live session.
func (m *Manager) StopAll() {
	for _, s := range m.registry.List() {
		s.setState(StateStopping)
		if proc := s.Process(); proc != nil {
			_ = proc.Kill()
		}
	}
}

// Wait blocks until all supervision loops have finished.
func (m *Manager) Wait() { m.wg.Wait() }

// RecoverStale prunes markers left behind by a crashed bridge: the marker
// file and progress state are removed and the orphaned routing flow deleted
// so the server stops forwarding messages to a dead session.
func (m *Manager) RecoverStale(ctx context.Context) error {
	stale, err := m.markers.Stale()
	if err != nil {
		return err
	}
	for _, mk := range stale {
		logger.Infof("recovering stale session %s (dir: %s)", mk.SessionID, mk.WorkDir)
		if err := m.flows.Cleanup(ctx, mk.FlowID); err != nil {
			logger.Warnf("failed to delete orphaned flow %s: %v", mk.FlowID, err)
		} else if mk.FlowID != "" {
			metrics.FlowCleanups.Inc()
		}
		if err := m.markers.Remove(mk.WorkDir); err != nil {
			logger.Warnf("failed to remove stale marker: %v", err)
		}
		if mk.SessionID != "" {
			_ = m.progress.Remove(mk.SessionID)
		}
		metrics.StaleMarkersRecovered.Inc()
		m.noteEvent(fmt.Sprintf("recovered stale session %s", mk.SessionID))
	}
	if len(stale) > 0 {
		m.flushNotes()
	}
	return nil
}

// cleanupFlow deletes the session's routing flow, tolerating repeats.
func (m *Manager) cleanupFlow(s *Session) {
	if s.FlowID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	if err := m.flows.Cleanup(ctx, s.FlowID); err != nil {
		logger.Warnf("session %s: flow cleanup failed: %v", s.ID, err)
		return
	}
	metrics.FlowCleanups.Inc()
}

func (m *Manager) noteEvent(entry string) {
	if m.notes == nil {
		return
	}
	m.notes.Append(entry)
}

func (m *Manager) flushNotes() {
	if m.notes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	if err := m.notes.Flush(ctx); err != nil {
		logger.Warnf("failed to flush activity notes: %v", err)
	}
}
