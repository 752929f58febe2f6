// Package realtime maintains the Socket.IO channel to the Mirra backend.
// The bridge holds one machine-scoped connection and receives group messages
// and session updates pushed by the server.
package realtime

import (
	"fmt"
	"sync"
	"time"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/mirra-world/claude-bridge/pkg/logger"
)

// EventType is a Socket.IO event name used by the bridge channel.
type EventType string

const (
	EventMessage       EventType = "message"
	EventSessionUpdate EventType = "session-update"
	EventBridgeAlive   EventType = "bridge-alive"
)

// MessageEvent is the payload of an inbound group message.
type MessageEvent struct {
	MessageID string
	GroupID   string
	Content   string
	WorkDir   string
	SessionID string
}

// ParseMessageEvent extracts a MessageEvent from a raw event payload.
func ParseMessageEvent(data map[string]any) MessageEvent {
	str := func(key string) string {
		v, _ := data[key].(string)
		return v
	}
	return MessageEvent{
		MessageID: str("messageId"),
		GroupID:   str("groupId"),
		Content:   str("content"),
		WorkDir:   str("workDir"),
		SessionID: str("sessionId"),
	}
}

// Client is a machine-scoped Socket.IO connection to the Mirra backend.
type Client struct {
	serverURL string
	apiKey    string
	machineID string

	mu        sync.RWMutex
	socket    *socket.Socket
	handlers  map[EventType]func(map[string]any)
	connected bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient builds a realtime client. Connect must be called before use.
func NewClient(serverURL, apiKey, machineID string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		machineID: machineID,
		handlers:  make(map[EventType]func(map[string]any)),
		done:      make(chan struct{}),
	}
}

// On registers the handler for an event type. Must be called before Connect.
func (c *Client) On(eventType EventType, handler func(map[string]any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = handler
}

// Connect establishes the Socket.IO connection. The underlying client keeps
// reconnecting on its own after transient drops.
func (c *Client) Connect() error {
	logger.Debugf("connecting realtime channel: %s", c.serverURL)

	opts := socket.DefaultOptions()
	opts.SetPath("/api/sdk/v1/updates")
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAuth(map[string]any{
		"token":      c.apiKey,
		"clientType": "bridge",
		"machineId":  c.machineID,
	})

	sock, err := socket.Connect(c.serverURL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect realtime channel: %w", err)
	}
	c.mu.Lock()
	c.socket = sock
	c.mu.Unlock()

	sock.On(types.EventName("connect"), func(args ...any) {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		logger.Infof("realtime channel connected (id: %s)", sock.Id())
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		reason := ""
		if len(args) > 0 {
			reason, _ = args[0].(string)
		}
		logger.Warnf("realtime channel disconnected: %s", reason)
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		if len(args) > 0 {
			logger.Warnf("realtime connection error: %v", args[0])
		}
	})

	for _, eventType := range []EventType{EventMessage, EventSessionUpdate} {
		et := eventType
		sock.On(types.EventName(et), func(args ...any) {
			var data map[string]any
			if len(args) > 0 {
				data, _ = args[0].(map[string]any)
			}
			c.mu.RLock()
			handler := c.handlers[et]
			c.mu.RUnlock()
			if handler != nil {
				go handler(data)
			}
		})
	}

	return nil
}

// WaitForConnect blocks until the socket reports connected or the timeout
// elapses.
func (c *Client) WaitForConnect(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.IsConnected() {
			return true
		}
		select {
		case <-c.done:
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
	return c.IsConnected()
}

// Emit sends an event without waiting for an acknowledgement.
func (c *Client) Emit(eventType EventType, data map[string]any) error {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()
	if sock == nil {
		return fmt.Errorf("not connected")
	}
	sock.Emit(string(eventType), data)
	return nil
}

// EmitWithAck sends an event and waits for the server's acknowledgement.
func (c *Client) EmitWithAck(eventType EventType, data map[string]any, timeout time.Duration) (map[string]any, error) {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()
	if sock == nil {
		return nil, fmt.Errorf("not connected")
	}

	resultCh := make(chan map[string]any, 1)
	errCh := make(chan error, 1)

	sock.Emit(string(eventType), data, func(args []any, err error) {
		if err != nil {
			errCh <- err
			return
		}
		if len(args) == 0 {
			resultCh <- nil
			return
		}
		payload, _ := args[0].(map[string]any)
		resultCh <- payload
	})

	select {
	case res := <-resultCh:
		return res, nil
	case err := <-errCh:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("ack timeout")
	}
}

// KeepAlive announces that the bridge is up and which sessions it runs.
func (c *Client) KeepAlive(sessionIDs []string) error {
	return c.Emit(EventBridgeAlive, map[string]any{
		"machineId": c.machineID,
		"sessions":  sessionIDs,
		"time":      time.Now().UnixMilli(),
	})
}

// IsConnected reports whether the channel is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	sock := c.socket
	connected := c.connected
	c.mu.RUnlock()
	if connected {
		return true
	}
	if sock != nil && sock.Connected() {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		return true
	}
	return false
}

// Close disconnects the channel. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket != nil {
		c.socket.Disconnect()
		c.socket = nil
	}
	c.connected = false
	return nil
}
