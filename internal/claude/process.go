// Package claude spawns and supervises the Claude Code CLI. A process runs
// either under a pseudo-terminal (interactive sessions on a real TTY) or as
// a plain child with pipes (headless sessions, CI, Windows-ish hosts where
// pty allocation fails).
package claude

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/mirra-world/claude-bridge/internal/termutil"
	"github.com/mirra-world/claude-bridge/pkg/logger"
)

// Options configure a spawned CLI process.
type Options struct {
	// Bin is the CLI binary name or path.
	Bin string
	// WorkDir is the working directory of the session.
	WorkDir string
	// Prompt is the initial prompt for headless runs.
	Prompt string
	// ResumeToken resumes an existing CLI session when non-empty.
	ResumeToken string
	// Interactive requests a pseudo-terminal attached to the user's TTY.
	Interactive bool
	// Env is appended to the inherited environment.
	Env []string
}

// killGrace is how long Kill waits after SIGINT before the hard kill.
const killGrace = 500 * time.Millisecond

// initialPromptDelay is how long an interactive session waits for the CLI's
// UI to come up before typing the initial prompt into the pty.
var initialPromptDelay = time.Second

// Process is one running Claude Code CLI invocation.
type Process struct {
	cmd  *exec.Cmd
	opts Options

	mu       sync.Mutex
	ptyFile  *os.File
	ttyFile  *os.File
	ownsTTY  bool
	ttyState *term.State
	ttyFD    int

	events      chan StreamEvent
	sessionIDCh chan string
	sessionID   string

	stopCh   chan struct{}
	stopOnce sync.Once

	streamDone chan struct{}
}

// NewProcess builds a CLI process from options. Start must be called to run
// it.
func NewProcess(opts Options) (*Process, error) {
	if strings.TrimSpace(opts.Bin) == "" {
		return nil, fmt.Errorf("missing CLI binary")
	}
	if strings.TrimSpace(opts.WorkDir) == "" {
		return nil, fmt.Errorf("missing work dir")
	}

	args := buildArgs(opts)
	cmd := exec.Command(opts.Bin, args...)
	cmd.Dir = opts.WorkDir
	cmd.Env = append(os.Environ(), opts.Env...)

	return &Process{
		cmd:         cmd,
		opts:        opts,
		events:      make(chan StreamEvent, 100),
		sessionIDCh: make(chan string, 1),
		stopCh:      make(chan struct{}),
		streamDone:  make(chan struct{}),
		ttyFD:       -1,
	}, nil
}

// buildArgs assembles the CLI argument list.
func buildArgs(opts Options) []string {
	var args []string
	if !opts.Interactive {
		args = append(args, "--print", "--verbose", "--output-format", "stream-json")
	}
	if token := strings.TrimSpace(opts.ResumeToken); token != "" {
		args = append(args, "--resume", token)
	}
	if !opts.Interactive && strings.TrimSpace(opts.Prompt) != "" {
		args = append(args, opts.Prompt)
	}
	return args
}

// Start launches the process. Interactive mode attaches a pty when the
// bridge itself is on a terminal; anything else falls back to pipes. The
// fallback is never fatal.
func (p *Process) Start() error {
	if p.opts.Interactive {
		err := p.startPTY()
		if err == nil {
			// No stream-json in pty mode; consumers see a closed channel.
			close(p.events)
			close(p.streamDone)
			if strings.TrimSpace(p.opts.Prompt) != "" {
				go p.deliverInitialPrompt()
			}
			return nil
		}
		logger.Warnf("pty unavailable, falling back to plain child process: %v", err)
	}
	return p.startPiped()
}

// startPTY runs the CLI under a pseudo-terminal wired to the user's TTY.
func (p *Process) startPTY() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("stdin is not a terminal")
	}

	ptyFile, err := pty.Start(p.cmd)
	if err != nil {
		return fmt.Errorf("failed to start under pty: %w", err)
	}
	p.mu.Lock()
	p.ptyFile = ptyFile

	// Read from /dev/tty rather than os.Stdin so Kill can close our handle
	// and unblock the copy goroutine immediately.
	tty := os.Stdin
	if ttyFile, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		tty = ttyFile
		p.ttyFile = ttyFile
		p.ownsTTY = true
	}

	// Raw mode so the CLI's interactive UI receives keystrokes unmangled.
	// ISIG comes back on so Ctrl+C still reaches the bridge as SIGINT.
	if term.IsTerminal(int(tty.Fd())) {
		fd := int(tty.Fd())
		if state, err := term.MakeRaw(fd); err == nil {
			p.ttyState = state
			p.ttyFD = fd
			termutil.EnableISIG(fd)
		}
	}
	p.mu.Unlock()

	_ = pty.InheritSize(tty, ptyFile)

	go func() {
		_, _ = io.Copy(os.Stdout, ptyFile)
	}()
	go func() {
		_, _ = io.Copy(ptyFile, tty)
	}()
	go p.watchWindowSize()

	logger.Debugf("CLI started under pty (pid: %d)", p.cmd.Process.Pid)
	return nil
}

// startPiped runs the CLI as a plain child and parses its stream-json
// stdout.
// deliverInitialPrompt types the initial prompt into the pty as if the user
// had entered it.
func (p *Process) deliverInitialPrompt() {
	select {
	case <-time.After(initialPromptDelay):
	case <-p.stopCh:
		return
	}
	if err := p.SendLine(p.opts.Prompt); err != nil {
		logger.Warnf("failed to deliver initial prompt: %v", err)
	}
}

func (p *Process) startPiped() error {
	// A failed pty attempt may have left stdio assigned to the pty slave.
	p.cmd.Stdin, p.cmd.Stdout, p.cmd.Stderr = nil, nil, nil

	if p.opts.Interactive {
		// Without a terminal the CLI's interactive UI is useless, so the
		// fallback runs headless. The argv was built for interactive mode
		// and carries neither the stream-json flags nor the prompt;
		// rebuild it.
		headless := p.opts
		headless.Interactive = false
		p.cmd.Args = append(p.cmd.Args[:1:1], buildArgs(headless)...)
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	p.cmd.Stderr = os.Stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start CLI: %w", err)
	}

	raw := make(chan StreamEvent, 100)
	go func() {
		if err := ParseStream(stdout, raw, p.stopCh); err != nil {
			logger.Debugf("stream parser error: %v", err)
		}
	}()
	go p.pump(raw)

	logger.Debugf("CLI started with pipes (pid: %d)", p.cmd.Process.Pid)
	return nil
}

// pump forwards parsed events, capturing the CLI session id from the init
// event.
func (p *Process) pump(raw <-chan StreamEvent) {
	defer close(p.streamDone)
	defer close(p.events)
	for event := range raw {
		if event.SessionID != "" {
			p.mu.Lock()
			first := p.sessionID == ""
			if first {
				p.sessionID = event.SessionID
			}
			p.mu.Unlock()
			if first {
				select {
				case p.sessionIDCh <- event.SessionID:
				default:
				}
			}
		}
		select {
		case p.events <- event:
		case <-p.stopCh:
			return
		}
	}
}

func (p *Process) watchWindowSize() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	defer signal.Stop(ch)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ch:
			p.mu.Lock()
			ptyFile, ttyFile := p.ptyFile, p.ttyFile
			p.mu.Unlock()
			if ptyFile == nil {
				continue
			}
			tty := os.Stdin
			if ttyFile != nil {
				tty = ttyFile
			}
			_ = pty.InheritSize(tty, ptyFile)
		}
	}
}

// Events returns the parsed stream events (piped mode only; empty channel
// in pty mode).
func (p *Process) Events() <-chan StreamEvent { return p.events }

// SessionIDNotify returns a channel that receives the CLI session id once
// detected.
func (p *Process) SessionIDNotify() <-chan string { return p.sessionIDCh }

// SessionID returns the detected CLI session id (empty if not yet seen).
func (p *Process) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// SetSessionID records a session id discovered out of band (pty mode, where
// the id comes from the session file scanner).
func (p *Process) SetSessionID(id string) {
	p.mu.Lock()
	first := p.sessionID == "" && id != ""
	if first {
		p.sessionID = id
	}
	p.mu.Unlock()
	if first {
		select {
		case p.sessionIDCh <- id:
		default:
		}
	}
}

// PID returns the child process id, or 0 before Start.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Wait blocks until the process exits, then restores the terminal and
// drains the parser.
func (p *Process) Wait() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	err := p.cmd.Wait()
	<-p.streamDone
	p.mu.Lock()
	p.restoreTTYLocked()
	p.mu.Unlock()
	return err
}

// Kill terminates the process: SIGINT first so the CLI can restore its
// terminal state, hard kill shortly after.
func (p *Process) Kill() error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	p.restoreTTYLocked()
	if p.ownsTTY && p.ttyFile != nil {
		_ = p.ttyFile.Close()
		p.ttyFile = nil
		p.ownsTTY = false
	}
	if p.ptyFile != nil {
		_ = p.ptyFile.Close()
		p.ptyFile = nil
	}
	p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	_ = p.cmd.Process.Signal(os.Interrupt)
	go func(cmd *exec.Cmd) {
		time.Sleep(killGrace)
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}(p.cmd)
	return nil
}

// SendInput writes raw bytes into the pty (as if typed by the user).
func (p *Process) SendInput(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ptyFile == nil {
		return fmt.Errorf("pty not initialized")
	}
	_, err := io.WriteString(p.ptyFile, text)
	return err
}

// SendLine injects text and then presses Enter, with a small delay to avoid
// paste buffering.
func (p *Process) SendLine(text string) error {
	if err := p.SendInput(text); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)
	return p.SendInput("\r")
}

// IsRunning reports whether the process is still alive (signal 0 check).
func (p *Process) IsRunning() bool {
	if p.cmd == nil || p.cmd.Process == nil {
		return false
	}
	return p.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// Interactive reports whether the process runs under a pty.
func (p *Process) Interactive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ptyFile != nil
}

func (p *Process) restoreTTYLocked() {
	if p.ttyState == nil {
		return
	}
	if p.ttyFD >= 0 {
		_ = term.Restore(p.ttyFD, p.ttyState)
	}
	p.ttyState = nil
	p.ttyFD = -1
	// The dead child may still own the foreground process group.
	termutil.EnsureTTYForegroundSelf()
}
