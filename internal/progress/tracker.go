// Package progress records per-session notification state on disk. Hook
// processes and the bridge daemon share these files, so progress updates to
// the group stay rate-limited and at-most-once even though they originate
// from independently spawned processes.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// State is the persisted progress record for one session.
type State struct {
	// SessionID is the bridge session id.
	SessionID string `json:"sessionId"`
	// MessageID is the group message updated in place with progress text.
	MessageID string `json:"messageId,omitempty"`
	// Steps counts completed tool steps reported by hooks.
	Steps int `json:"steps"`
	// ReportedSteps is the step count included in the last notification.
	ReportedSteps int `json:"reportedSteps"`
	// LastNotifiedAtMs is the wall clock of the last notification.
	LastNotifiedAtMs int64 `json:"lastNotifiedAtMs,omitempty"`
	// FinishedAtMs is set once the session ended; no further notifications.
	FinishedAtMs int64 `json:"finishedAtMs,omitempty"`

	UpdatedAtMs int64 `json:"updatedAtMs,omitempty"`
}

// Tracker reads and writes progress state files under one directory.
type Tracker struct {
	dir         string
	minInterval time.Duration
}

// NewTracker creates a tracker rooted at dir. minInterval is the smallest
// allowed gap between two notifications for the same session.
func NewTracker(dir string, minInterval time.Duration) *Tracker {
	return &Tracker{dir: dir, minInterval: minInterval}
}

// Dir returns the directory holding progress files.
func (t *Tracker) Dir() string { return t.dir }

func (t *Tracker) path(sessionID string) string {
	// Defensively prevent path traversal if session ids ever become untrusted.
	sessionID = strings.ReplaceAll(sessionID, string(os.PathSeparator), "_")
	return filepath.Join(t.dir, sessionID+".json")
}

// Init creates the progress state for a new session.
func (t *Tracker) Init(sessionID, messageID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("missing session id")
	}
	return t.save(State{SessionID: sessionID, MessageID: messageID})
}

// Load reads the state for a session. ok is false when no state exists.
func (t *Tracker) Load(sessionID string) (st State, ok bool, err error) {
	data, err := os.ReadFile(t.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// Bump increments the step counter and returns the updated state. Missing
// state is created on the fly so hooks tolerate a racing session start.
//
// The read-modify-write here (and in MarkNotified) is not file-locked:
// Claude Code invokes hooks for a session one at a time, so writers of the
// same state file never overlap. save's tmp+rename keeps concurrent readers
// from observing a torn file.
func (t *Tracker) Bump(sessionID string) (State, error) {
	st, ok, err := t.Load(sessionID)
	if err != nil {
		return State{}, err
	}
	if !ok {
		st = State{SessionID: sessionID}
	}
	st.Steps++
	if err := t.save(st); err != nil {
		return State{}, err
	}
	return st, nil
}

// ShouldNotify reports whether a progress notification may be sent now.
// True only when the step count advanced since the last report and the
// minimum interval elapsed. Finished sessions never notify.
func (t *Tracker) ShouldNotify(st State, now time.Time) bool {
	if st.FinishedAtMs != 0 {
		return false
	}
	if st.Steps <= st.ReportedSteps {
		return false
	}
	if st.LastNotifiedAtMs == 0 {
		return true
	}
	elapsed := now.Sub(time.UnixMilli(st.LastNotifiedAtMs))
	return elapsed >= t.minInterval
}

// MarkNotified records that a notification for the given step count went
// out. Reported state is monotone: an older racing writer cannot move it
// backwards.
func (t *Tracker) MarkNotified(sessionID string, steps int, now time.Time) error {
	st, ok, err := t.Load(sessionID)
	if err != nil {
		return err
	}
	if !ok {
		st = State{SessionID: sessionID}
	}
	if steps > st.ReportedSteps {
		st.ReportedSteps = steps
	}
	if steps > st.Steps {
		st.Steps = steps
	}
	st.LastNotifiedAtMs = now.UnixMilli()
	return t.save(st)
}

// Finish marks the session done; later ShouldNotify calls return false.
func (t *Tracker) Finish(sessionID string) error {
	st, ok, err := t.Load(sessionID)
	if err != nil {
		return err
	}
	if !ok {
		st = State{SessionID: sessionID}
	}
	if st.FinishedAtMs == 0 {
		st.FinishedAtMs = time.Now().UnixMilli()
	}
	return t.save(st)
}

// Remove deletes the state file for a session. Removing missing state is
// not an error.
func (t *Tracker) Remove(sessionID string) error {
	err := os.Remove(t.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// save writes the state atomically (tmp + rename).
func (t *Tracker) save(st State) error {
	if err := os.MkdirAll(t.dir, 0o700); err != nil {
		return err
	}
	st.UpdatedAtMs = time.Now().UnixMilli()
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	path := t.path(st.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
