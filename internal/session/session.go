// Package session owns the lifecycle of bridge sessions: spawning the CLI,
// registering recovery markers, relaying output to the messaging group and
// tearing everything down exactly once.
package session

import (
	"sync"
	"time"

	"github.com/mirra-world/claude-bridge/internal/claude"
)

// State is a session lifecycle state.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Session is one supervised CLI run.
type Session struct {
	// ID is the bridge session id, minted at start.
	ID string
	// WorkDir is the absolute working directory.
	WorkDir string
	// Prompt is the initial prompt.
	Prompt string
	// MessageID is the group message this session reports progress to.
	MessageID string
	// FlowID is the server-side routing flow, set once created.
	FlowID string
	// CreatedAt is when the session was started.
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	proc       *claude.Process
	claudeID   string // CLI-side session id, used for --resume
	queued     []string
	finishOnce sync.Once
	done       chan struct{}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Process returns the underlying CLI process, nil before spawn.
func (s *Session) Process() *claude.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc
}

// ClaudeID returns the CLI-side session id once detected.
func (s *Session) ClaudeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claudeID
}

// Interactive reports whether the session runs under a pty.
func (s *Session) Interactive() bool {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	return proc != nil && proc.Interactive()
}

// QueueInput stores a follow-up message to send as a resumed run once the
// current one finishes.
func (s *Session) QueueInput(text string) {
	s.mu.Lock()
	s.queued = append(s.queued, text)
	s.mu.Unlock()
}

// TakeQueued returns and clears the queued follow-ups.
func (s *Session) TakeQueued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.queued
	s.queued = nil
	return queued
}

// Done is closed when the session has fully finished, cleanup included.
func (s *Session) Done() <-chan struct{} { return s.done }
