// Package notes appends bridge activity to a remote memory note, giving the
// phone app a persistent activity log per machine.
package notes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mirra-world/claude-bridge/pkg/logger"
	"github.com/mirra-world/claude-bridge/pkg/mirra"
)

const noteType = "bridge-activity"

// Manager buffers activity entries and flushes them to a remote memory
// entity. Entries survive a failed flush and are retried on the next one.
type Manager struct {
	client    *mirra.Client
	machineID string

	mu      sync.Mutex
	noteID  string
	content string
	pending []string
}

// NewManager builds a note manager for one machine.
func NewManager(client *mirra.Client, machineID string) *Manager {
	return &Manager{client: client, machineID: machineID}
}

// EnsureNote finds or creates the machine's activity note and caches its id
// and current content.
func (m *Manager) EnsureNote(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noteID != "" {
		return nil
	}

	existing, err := m.client.Memory.Query(ctx, mirra.MemoryQueryParams{
		Filters: map[string]any{
			"type":      noteType,
			"machineId": m.machineID,
		},
		Limit: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to look up activity note: %w", err)
	}
	if len(existing) > 0 {
		m.noteID = existing[0].ID
		m.content = existing[0].Content
		return nil
	}

	id, err := m.client.Memory.Create(ctx, mirra.MemoryEntity{
		Type:    noteType,
		Content: "",
		Metadata: map[string]any{
			"machineId": m.machineID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create activity note: %w", err)
	}
	m.noteID = id
	logger.Infof("created activity note %s", id)
	return nil
}

// Append queues one activity entry. Entries are timestamped at queue time
// and written on the next Flush.
func (m *Manager) Append(entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return
	}
	line := time.Now().UTC().Format(time.RFC3339) + " " + entry
	m.mu.Lock()
	m.pending = append(m.pending, line)
	m.mu.Unlock()
}

// Flush writes all queued entries to the remote note. Pending entries are
// kept on failure so nothing is lost.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	if m.noteID == "" || len(m.pending) == 0 {
		m.mu.Unlock()
		return nil
	}
	batch := m.pending
	content := m.content
	if content != "" {
		content += "\n"
	}
	content += strings.Join(batch, "\n")
	noteID := m.noteID
	m.mu.Unlock()

	err := m.client.Memory.Update(ctx, noteID, mirra.MemoryUpdateParams{
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("failed to flush activity note: %w", err)
	}

	m.mu.Lock()
	m.content = content
	// Entries appended during the flush stay queued.
	m.pending = m.pending[len(batch):]
	m.mu.Unlock()

	logger.Debugf("flushed %d activity entries", len(batch))
	return nil
}

// Pending returns the number of queued, unflushed entries.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
