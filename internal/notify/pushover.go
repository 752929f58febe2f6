// Package notify delivers out-of-band push notifications about session
// outcomes. It is the fallback channel for when the user is away from the
// Mirra app, and is entirely optional.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	pushoverEndpoint    = "https://api.pushover.net/1/messages.json"
	pushoverContentType = "application/x-www-form-urlencoded"

	defaultTimeout = 10 * time.Second
)

// PushoverConfig holds the Pushover credentials and delivery defaults.
type PushoverConfig struct {
	// Token is the application API token.
	Token string
	// UserKey is the destination user key.
	UserKey string
	// Priority is the Pushover priority for session notifications.
	Priority int
	// Cooldown is the minimum interval between notifications for the same
	// session.
	Cooldown time.Duration
}

// Pushover sends session notifications through the Pushover service. One
// notification per session per cooldown window; repeated failures of the
// same session do not spam the user's phone.
type Pushover struct {
	cfg      PushoverConfig
	endpoint string
	client   *http.Client

	mu       sync.Mutex
	lastSent map[string]time.Time
	lastErr  error
}

// NewPushover validates the config and builds a notifier.
func NewPushover(cfg PushoverConfig) (*Pushover, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("pushover token is required")
	}
	if strings.TrimSpace(cfg.UserKey) == "" {
		return nil, fmt.Errorf("pushover user key is required")
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("pushover cooldown must be non-negative")
	}
	return &Pushover{
		cfg:      cfg,
		endpoint: pushoverEndpoint,
		client:   &http.Client{Timeout: defaultTimeout},
		lastSent: make(map[string]time.Time),
	}, nil
}

// SessionEvent notifies the user about one session, deduplicated by session
// id within the cooldown window.
func (p *Pushover) SessionEvent(ctx context.Context, sessionID, title, message string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("message is required")
	}

	now := time.Now()
	if !p.shouldSend(sessionID, now) {
		return nil
	}
	if err := p.send(ctx, title, message); err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return err
	}
	p.mu.Lock()
	p.lastSent[sessionID] = now
	p.lastErr = nil
	p.mu.Unlock()
	return nil
}

// LastError returns the most recent delivery error, if any.
func (p *Pushover) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Pushover) shouldSend(sessionID string, now time.Time) bool {
	if p.cfg.Cooldown == 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSent[sessionID]
	if !ok {
		return true
	}
	return now.Sub(last) >= p.cfg.Cooldown
}

func (p *Pushover) send(ctx context.Context, title, message string) error {
	form := url.Values{}
	form.Set("token", p.cfg.Token)
	form.Set("user", p.cfg.UserKey)
	form.Set("message", message)
	if title = strings.TrimSpace(title); title != "" {
		form.Set("title", title)
	}
	if p.cfg.Priority != 0 {
		form.Set("priority", fmt.Sprintf("%d", p.cfg.Priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pushover request build failed: %w", err)
	}
	req.Header.Set("Content-Type", pushoverContentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pushover response read failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("pushover response %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
