// Package ptyrun runs a command attached to a fresh pseudo-terminal instead of
// a real terminal emulator. Nothing answers the command's terminal queries,
// so it gives the baseline of what a program sees on a bare tty.
package ptyrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// DefaultSize is used when the invoking process has no terminal
var DefaultSize = pty.Winsize{Rows: 24, Cols: 80}

// CurrentSize returns the size of the terminal on stdout, or DefaultSize.
func CurrentSize() *pty.Winsize {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		size := DefaultSize
		return &size
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= 0 {
		size := DefaultSize
		return &size
	}
	return &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
}

// Run starts argv on a new pty, discards everything it writes to the
// terminal and waits for it to exit. The returned int is the exit code.
// An error is returned only when the command could not be started; a
// non-zero exit is reported through the exit code.
func Run(ctx context.Context, argv []string, dir string, size *pty.Winsize) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("empty command")
	}
	if size == nil {
		size = &DefaultSize
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return -1, fmt.Errorf("failed to start command with pty: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	// Drain the controller side so the child never blocks on a full buffer.
	// Reading stops with EIO once the last user of the tty is gone.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		if _, err := io.Copy(io.Discard, ptmx); err != nil && !isClosedPTY(err) {
			slog.Debug("Error reading from PTY", "error", err)
		}
	}()

	err = cmd.Wait()
	_ = ptmx.Close()
	<-drained

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("failed to wait for command: %w", err)
	}
	return 0, nil
}

// isClosedPTY reports the errors that end a read once the child side of
// the pty is gone (EIO on Linux) or the controller was closed by Run.
func isClosedPTY(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}
