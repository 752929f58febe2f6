package claude

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mirra-world/claude-bridge/pkg/logger"
)

// SessionMessage is one record of the CLI's per-project session file.
type SessionMessage struct {
	UUID      string          `json:"uuid"`
	SessionID string          `json:"sessionId"`
	Message   json.RawMessage `json:"message"`
	Type      string          `json:"type"` // "user", "assistant", "summary", ...
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// Scanner tails the CLI's session file for new messages. Interactive
// sessions have no stream-json stdout, so this is how their conversation is
// observed.
type Scanner struct {
	projectPath    string
	sessionID      string
	lastPosition   int64
	processedUUIDs sync.Map // dedupe across session resumes
	messageCh      chan *SessionMessage
	stopCh         chan struct{}
	stopOnce       sync.Once
	mu             sync.Mutex
}

// NewScanner creates a session file scanner.
func NewScanner(projectPath, sessionID string) *Scanner {
	return &Scanner{
		projectPath: projectPath,
		sessionID:   sessionID,
		messageCh:   make(chan *SessionMessage, 100),
		stopCh:      make(chan struct{}),
	}
}

var projectPathSanitizer = regexp.MustCompile(`[\\\/\.:]`)

// projectDir returns where the CLI stores per-project session files.
func projectDir(projectPath string) string {
	configDir := os.Getenv("CLAUDE_CONFIG_DIR")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".claude")
	}
	projectID := projectPathSanitizer.ReplaceAllString(filepath.Clean(projectPath), "-")
	return filepath.Join(configDir, "projects", projectID)
}

// SessionFilePath returns the session file being tailed:
// <config>/projects/<project-id>/<session-id>.jsonl
func (s *Scanner) SessionFilePath() string {
	return filepath.Join(projectDir(s.projectPath), s.sessionID+".jsonl")
}

// AssistantText extracts the text blocks from an assistant message.
func (m *SessionMessage) AssistantText() string {
	return assistantText(m.Message)
}

// FindNewestSession returns the id of the most recent session file for a
// project created after since. Interactive sessions expose no session id on
// stdout, so it is recovered from the file the CLI creates.
func FindNewestSession(projectPath string, since time.Time) (string, bool) {
	entries, err := os.ReadDir(projectDir(projectPath))
	if err != nil {
		return "", false
	}
	var (
		newest    string
		newestMod time.Time
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().Before(since) {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = strings.TrimSuffix(name, ".jsonl")
			newestMod = info.ModTime()
		}
	}
	return newest, newest != ""
}

// Start begins tailing in the background.
func (s *Scanner) Start() {
	go s.watchLoop()
}

// Stop stops the scanner.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Messages returns the channel of newly observed session messages.
func (s *Scanner) Messages() <-chan *SessionMessage {
	return s.messageCh
}

func (s *Scanner) watchLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	filePath := s.SessionFilePath()
	logger.Debugf("scanner tailing %s", filePath)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.scanFile(filePath)
		}
	}
}

// scanFile reads new lines past the last seen position.
func (s *Scanner) scanFile(filePath string) {
	file, err := os.Open(filePath)
	if err != nil {
		// File may not exist yet, this is normal.
		return
	}
	defer file.Close()

	s.mu.Lock()
	lastPos := s.lastPosition
	s.mu.Unlock()

	if lastPos > 0 {
		if _, err := file.Seek(lastPos, io.SeekStart); err != nil {
			return
		}
	}

	scanner := bufio.NewScanner(file)
	buf := make([]byte, streamScannerBuffer)
	scanner.Buffer(buf, streamScannerBuffer)

	for scanner.Scan() {
		select {
		case <-s.stopCh:
			return
		default:
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var msg SessionMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			// Often just a truncated line at end of file.
			continue
		}

		// Resumed sessions replay history; drop already-seen UUIDs.
		if msg.UUID != "" {
			if _, dup := s.processedUUIDs.LoadOrStore(msg.UUID, true); dup {
				continue
			}
		}

		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}

		select {
		case s.messageCh <- &msg:
		default:
			logger.Debugf("scanner channel full, dropping message")
		}
	}

	if pos, err := file.Seek(0, io.SeekCurrent); err == nil {
		s.mu.Lock()
		s.lastPosition = pos
		s.mu.Unlock()
	}
}
