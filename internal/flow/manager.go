// Package flow manages the server-side routing flows that forward group
// messages to a running bridge session. A flow exists for exactly as long as
// its session does.
package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mirra-world/claude-bridge/pkg/logger"
	"github.com/mirra-world/claude-bridge/pkg/mirra"
)

const (
	triggerGroupMessage    = "group-message"
	actionForwardToSession = "forward-to-session"
)

// Manager creates and deletes routing flows for bridge sessions.
type Manager struct {
	client    *mirra.Client
	groupID   string
	machineID string
}

// NewManager builds a flow manager bound to one group and machine.
func NewManager(client *mirra.Client, groupID, machineID string) *Manager {
	return &Manager{client: client, groupID: groupID, machineID: machineID}
}

// FlowName returns the server-side name of a session's routing flow.
func FlowName(sessionID string) string {
	return "bridge-session-" + sessionID
}

// Ensure creates the routing flow for a session. Creation is idempotent: if
// a flow with the session's name already exists (a previous run crashed
// after creating it), the existing flow is reused.
func (m *Manager) Ensure(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("missing session id")
	}

	name := FlowName(sessionID)
	if existing, err := m.findByName(ctx, name); err == nil && existing != nil {
		logger.Debugf("reusing existing flow %s for session %s", existing.ID, sessionID)
		return existing.ID, nil
	}

	flow, err := m.client.Flows.Create(ctx, mirra.CreateFlowParams{
		Name:    name,
		Enabled: true,
		Trigger: mirra.FlowTrigger{
			Type:    triggerGroupMessage,
			GroupID: m.groupID,
		},
		Action: mirra.FlowAction{
			Type:      actionForwardToSession,
			SessionID: sessionID,
			MachineID: m.machineID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create routing flow: %w", err)
	}

	logger.Infof("created routing flow %s for session %s", flow.ID, sessionID)
	return flow.ID, nil
}

// Cleanup deletes a session's routing flow. A flow already deleted on the
// server (by TTL or a concurrent cleanup) is not an error.
func (m *Manager) Cleanup(ctx context.Context, flowID string) error {
	if strings.TrimSpace(flowID) == "" {
		return nil
	}
	if err := m.client.Flows.Delete(ctx, flowID); err != nil {
		if mirra.IsNotFound(err) {
			logger.Debugf("flow %s already deleted", flowID)
			return nil
		}
		return fmt.Errorf("failed to delete flow %s: %w", flowID, err)
	}
	logger.Infof("deleted routing flow %s", flowID)
	return nil
}

func (m *Manager) findByName(ctx context.Context, name string) (*mirra.Flow, error) {
	flows, err := m.client.Flows.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range flows {
		if flows[i].Name == name {
			return &flows[i], nil
		}
	}
	return nil, nil
}
