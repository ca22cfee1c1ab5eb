package ptyrun

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

func TestRun_WritesFileFromTTY(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "result")

	// the child only learns about the tty through its own stdin
	code, err := Run(context.Background(),
		[]string{"sh", "-c", `if [ -t 0 ]; then echo tty > "$1"; else echo notty > "$1"; fi`, "sh", out},
		dir, &pty.Winsize{Rows: 30, Cols: 100})
	require.NoError(t, err)
	require.Equal(t, 0, code)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "tty", strings.TrimSpace(string(data)))
}

func TestRun_ReportsSize(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "size")

	_, err := Run(context.Background(),
		[]string{"sh", "-c", `stty size > "$1"`, "sh", out},
		dir, &pty.Winsize{Rows: 30, Cols: 100})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "30 100", strings.TrimSpace(string(data)))
}

func TestRun_ExitCode(t *testing.T) {
	code, err := Run(context.Background(), []string{"sh", "-c", "exit 3"}, t.TempDir(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, code)
}

func TestRun_DrainsOutput(t *testing.T) {
	// more than a pty buffer holds; the child would block if nothing read it
	code, err := Run(context.Background(), []string{"sh", "-c", "yes | head -c 200000"}, t.TempDir(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestRun_NotFound(t *testing.T) {
	_, err := Run(context.Background(), []string{"definitely-not-a-real-binary-xyz"}, t.TempDir(), nil)
	require.Error(t, err)
}

func TestRun_Empty(t *testing.T) {
	_, err := Run(context.Background(), nil, "", nil)
	require.ErrorContains(t, err, "empty command")
}

func TestCurrentSize(t *testing.T) {
	size := CurrentSize()
	require.NotNil(t, size)
	require.NotZero(t, size.Rows)
	require.NotZero(t, size.Cols)
}

func TestIsClosedPTY(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "eio", err: &os.PathError{Op: "read", Path: "/dev/ptmx", Err: syscall.EIO}, want: true},
		{name: "closed", err: &os.PathError{Op: "read", Path: "/dev/ptmx", Err: os.ErrClosed}, want: true},
		{name: "bad fd", err: &os.PathError{Op: "read", Path: "/dev/ptmx", Err: syscall.EBADF}, want: false},
		{name: "other", err: io.ErrUnexpectedEOF, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isClosedPTY(tt.err))
		})
	}
}
