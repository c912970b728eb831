//go:build !windows
// +build !windows

// Package pty is the pseudo-terminal process adapter: it spawns a command on
// a PTY and exposes write/resize/kill plus callbacks for output and exit.
// The core consumes it through the session.ProcessHandle interface and never
// touches the process directly.
package pty

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/HarikaMhae/claude-terminal-panel/internal/logging"
)

var ptyLog = logging.ForComponent(logging.CompPTY)

// SpawnOptions configures the spawned process and its terminal.
type SpawnOptions struct {
	Cols uint16
	Rows uint16
	Cwd  string
	Env  []string

	// OnData receives each raw output chunk, in read order, from a single
	// goroutine. Required.
	OnData func(chunk []byte)

	// OnExit fires exactly once after the final OnData call, with the
	// process exit code and the signal name if the process was killed by
	// one. Optional.
	OnExit func(code int, signal string)
}

// Handle owns one spawned process and its terminal. Kill is idempotent.
type Handle struct {
	cmd  *exec.Cmd
	ptmx *os.File

	closeOnce sync.Once
	done      chan struct{}
}

// Spawn starts command with the given arguments on a fresh PTY and begins
// streaming its output. The returned handle owns the process; callers
// release it via Kill.
func Spawn(command string, args []string, opts SpawnOptions) (*Handle, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if opts.OnData == nil {
		return nil, fmt.Errorf("OnData callback is required")
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = opts.Cwd
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: opts.Cols, Rows: opts.Rows})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	h := &Handle{
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}

	go h.streamOutput(opts)
	return h, nil
}

// streamOutput is the single reader goroutine: copies chunks to OnData until
// the PTY closes, then reaps the process and reports exit.
func (h *Handle) streamOutput(opts SpawnOptions) {
	defer close(h.done)

	buf := make([]byte, 4096)
	for {
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			opts.OnData(chunk)
		}
		if err != nil {
			// EIO is the normal Linux read error once the child side of the
			// PTY is gone; treat it like EOF.
			if !errors.Is(err, io.EOF) && !errors.Is(err, syscall.EIO) {
				ptyLog.Warn("pty_read_error", slog.String("error", err.Error()))
			}
			break
		}
	}

	code, signal := h.reap()
	if opts.OnExit != nil {
		opts.OnExit(code, signal)
	}
}

// reap waits for the process and extracts its exit code and fatal signal.
func (h *Handle) reap() (int, string) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return exitErr.ExitCode(), ws.Signal().String()
		}
		return exitErr.ExitCode(), ""
	}
	return -1, ""
}

// Write sends input bytes to the process's terminal.
func (h *Handle) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := h.ptmx.Write(p)
	return err
}

// Resize changes the terminal dimensions.
func (h *Handle) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid dimensions: cols=%d rows=%d", cols, rows)
	}
	return pty.Setsize(h.ptmx, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
}

// Kill terminates the process group and closes the terminal. Safe to call
// more than once; later calls are no-ops.
func (h *Handle) Kill() error {
	h.closeOnce.Do(func() {
		if h.ptmx != nil {
			_ = h.ptmx.Close()
		}
		if h.cmd != nil && h.cmd.Process != nil {
			pgid, err := syscall.Getpgid(h.cmd.Process.Pid)
			if err == nil {
				_ = syscall.Kill(-pgid, syscall.SIGTERM)
			} else {
				_ = h.cmd.Process.Kill()
			}
		}
	})
	return nil
}

// Done is closed after the final OnData and OnExit callbacks have run.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
