// Package marker persists per-working-directory session markers. Hook
// scripts run as separate OS processes with no inherited environment; the
// marker file is how they discover which session, group and API key a
// directory belongs to.
package marker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrTampered is returned when a marker's integrity token does not verify.
var ErrTampered = errors.New("marker integrity check failed")

// Marker is the session context recorded for one working directory.
type Marker struct {
	// SessionID is the bridge session id.
	SessionID string `json:"sessionId"`
	// GroupID is the Mirra messaging group the session reports to.
	GroupID string `json:"groupId"`
	// MessageID is the progress message updated in place by hooks.
	MessageID string `json:"messageId,omitempty"`
	// FlowID is the server-side routing flow for this session.
	FlowID string `json:"flowId,omitempty"`
	// APIKey lets hook processes construct their own Mirra client.
	APIKey string `json:"apiKey"`
	// WorkDir is the absolute working directory of the session.
	WorkDir string `json:"workDir"`
	// PID is the supervising bridge process, used for stale detection.
	PID int `json:"pid"`
	// Token is the EdDSA integrity token over {sid, gid, mid}.
	Token string `json:"token,omitempty"`

	CreatedAtMs int64 `json:"createdAtMs,omitempty"`
	UpdatedAtMs int64 `json:"updatedAtMs,omitempty"`
}

// Store reads and writes marker files under a single directory.
type Store struct {
	dir    string
	signer *signer
}

// NewStore creates a marker store rooted at dir. The machine secret is used
// to sign and verify marker integrity tokens.
func NewStore(dir string, machineSecret []byte) *Store {
	return &Store{dir: dir, signer: newSigner(machineSecret)}
}

// Dir returns the directory holding marker files.
func (s *Store) Dir() string { return s.dir }

// hashWorkDir derives the marker file name from a working directory path.
func hashWorkDir(workDir string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(workDir)))
	return hex.EncodeToString(sum[:])[:16]
}

// path returns the marker file path for a working directory.
func (s *Store) path(workDir string) string {
	return filepath.Join(s.dir, hashWorkDir(workDir)+".json")
}

// Register writes (or replaces) the marker for its working directory.
// The write is atomic so hook processes never observe a torn file.
func (s *Store) Register(m Marker) error {
	if strings.TrimSpace(m.SessionID) == "" {
		return fmt.Errorf("missing session id")
	}
	if strings.TrimSpace(m.WorkDir) == "" {
		return fmt.Errorf("missing work dir")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if m.CreatedAtMs == 0 {
		m.CreatedAtMs = now
	}
	m.UpdatedAtMs = now

	token, err := s.signer.sign(m)
	if err != nil {
		return fmt.Errorf("failed to sign marker: %w", err)
	}
	m.Token = token

	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}

	path := s.path(m.WorkDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Lookup loads and verifies the marker for a working directory.
//
// ok is false when no marker exists. A marker that fails verification is
// reported with ErrTampered.
func (s *Store) Lookup(workDir string) (m Marker, ok bool, err error) {
	data, err := os.ReadFile(s.path(workDir))
	if err != nil {
		if os.IsNotExist(err) {
			return Marker{}, false, nil
		}
		return Marker{}, false, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, false, fmt.Errorf("%w: %v", ErrTampered, err)
	}
	if err := s.signer.verify(m); err != nil {
		return Marker{}, false, fmt.Errorf("%w: %v", ErrTampered, err)
	}
	return m, true, nil
}

// Remove deletes the marker for a working directory. Removing a missing
// marker is not an error.
func (s *Store) Remove(workDir string) error {
	err := os.Remove(s.path(workDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns all verifiable markers in the store.
func (s *Store) List() ([]Marker, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var markers []Marker
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var m Marker
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		if err := s.signer.verify(m); err != nil {
			continue
		}
		markers = append(markers, m)
	}
	return markers, nil
}

// Stale returns decodable markers whose owning bridge process is gone or
// whose integrity token fails. Marker files that cannot be decoded at all
// are deleted on the spot; they carry nothing to clean up server-side.
func (s *Store) Stale() ([]Marker, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var stale []Marker
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var m Marker
		if err := json.Unmarshal(data, &m); err != nil {
			_ = os.Remove(path)
			continue
		}
		if s.signer.verify(m) != nil || !processAlive(m.PID) {
			stale = append(stale, m)
		}
	}
	return stale, nil
}

// processAlive reports whether a PID refers to a live process we can signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}
