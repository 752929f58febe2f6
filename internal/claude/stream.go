package claude

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/mirra-world/claude-bridge/pkg/logger"
)

// StreamEvent is one line of the CLI's `--output-format stream-json` output.
type StreamEvent struct {
	Type      string `json:"type"`              // "system", "assistant", "user", "result"
	Subtype   string `json:"subtype,omitempty"` // "init" for system, "success"/"error_*" for result
	SessionID string `json:"session_id,omitempty"`
	UUID      string `json:"uuid,omitempty"`

	// Message is the raw API message for assistant/user events.
	Message json.RawMessage `json:"message,omitempty"`

	// Result fields (type == "result").
	Result       string  `json:"result,omitempty"`
	IsError      bool    `json:"is_error,omitempty"`
	NumTurns     int     `json:"num_turns,omitempty"`
	DurationMs   int64   `json:"duration_ms,omitempty"`
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
}

// AssistantText extracts the concatenated text blocks from an assistant
// event's message. Non-text blocks (tool use, thinking) are skipped.
func (e *StreamEvent) AssistantText() string {
	return assistantText(e.Message)
}

// assistantText pulls the text blocks out of a raw API message.
func assistantText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var msg struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// streamScannerBuffer bounds a single stream-json line. Assistant messages
// can carry whole files, so this is generous.
const streamScannerBuffer = 10 * 1024 * 1024

// ParseStream reads stream-json lines from r and delivers decoded events to
// the channel until EOF or until stop closes. Events are deduplicated by
// UUID, which handles the CLI replaying history after `--resume`. The
// channel is closed on return. A nil stop never fires.
func ParseStream(r io.Reader, events chan<- StreamEvent, stop <-chan struct{}) error {
	defer close(events)

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, streamScannerBuffer)

	var seen sync.Map
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			logger.Debugf("skipping invalid stream line: %v", err)
			continue
		}
		if event.UUID != "" {
			if _, dup := seen.LoadOrStore(event.UUID, true); dup {
				continue
			}
		}
		select {
		case events <- event:
		case <-stop:
			// The consumer is gone; draining the rest would block forever.
			return nil
		}
	}
	return scanner.Err()
}
