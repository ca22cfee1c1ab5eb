package smoketest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"termsmoke/internal/catalog"
	"termsmoke/internal/linger"
)

// DefaultPayload builds and runs the query example. The path of the result
// file is appended as its only argument.
var DefaultPayload = []string{"cargo", "run", "--example", "query", "--"}

// Result is the outcome of one catalog entry
type Result struct {
	Name      string
	Command   []string
	Lines     []string      // lines of the result file, newline kept
	ExitCode  int           // -1 if the child was killed or never ran
	TimedOut  bool          // Timeout elapsed and the child was killed
	Err       error         // spawn or read-back failure
	Lingering []linger.Proc // payload processes alive after the child returned
	Duration  time.Duration
}

// SpawnError means the terminal could not be started at all, typically
// because its executable is not installed.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// LingerFunc finds processes still using the result file
type LingerFunc func(ctx context.Context, marker string) ([]linger.Proc, error)

// StartFunc runs argv in dir and blocks until it exits, returning the exit
// code. The error is reserved for commands that could not be started.
type StartFunc func(ctx context.Context, argv []string, dir string) (int, error)

// Runner runs every catalog entry in order, one at a time.
type Runner struct {
	Catalog catalog.Catalog
	Payload []string
	Dir     string    // working directory of the children, "" for the current one
	Out     io.Writer // console report, os.Stdout if nil

	// Timeout per entry. Zero waits forever.
	Timeout time.Duration

	// KeepGoing continues with the next entry after a spawn failure
	// instead of aborting the run.
	KeepGoing bool

	// Linger is called after each child exits. Nil disables the check.
	Linger LingerFunc

	// Start overrides how a single entry is executed; nil runs the command
	// directly with its output discarded.
	Start StartFunc

	// Observer is called with every finished Result, also for the entry
	// that aborts the run.
	Observer func(Result)
}

// BuildCommand returns prefix followed by payload and outputPath.
// The returned slice never shares memory with its inputs.
func BuildCommand(prefix, payload []string, outputPath string) []string {
	argv := make([]string, 0, len(prefix)+len(payload)+1)
	argv = append(argv, prefix...)
	argv = append(argv, payload...)
	return append(argv, outputPath)
}

// Run executes the catalog. It returns the results of all entries that ran.
// Unless KeepGoing is set the first *SpawnError stops the run and is
// returned; no later entry is started.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}

	var results []Result
	var spawnErrs []error
	for _, tmpl := range r.Catalog {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := r.runOne(ctx, out, tmpl)
		results = append(results, res)
		if r.Observer != nil {
			r.Observer(res)
		}

		if res.Err == nil {
			continue
		}
		var spawnErr *SpawnError
		if !errors.As(res.Err, &spawnErr) {
			return results, res.Err
		}
		if !r.KeepGoing {
			return results, res.Err
		}
		slog.Warn("Terminal could not be started, continuing", "terminal", tmpl.Name, "error", spawnErr.Err)
		spawnErrs = append(spawnErrs, res.Err)
	}

	return results, errors.Join(spawnErrs...)
}

// runOne handles a single entry. The result file only lives for the
// duration of this call.
func (r *Runner) runOne(ctx context.Context, out io.Writer, tmpl catalog.Template) (res Result) {
	res = Result{Name: tmpl.Name, ExitCode: -1}
	started := time.Now()
	defer func() { res.Duration = time.Since(started) }()

	_, _ = fmt.Fprintf(out, "Testing %s...\n", tmpl.Name)

	resultFile, err := os.CreateTemp("", "termsmoke-*")
	if err != nil {
		res.Err = fmt.Errorf("failed to create result file: %w", err)
		return res
	}
	path := resultFile.Name()
	_ = resultFile.Close()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Error("Failed to remove result file", "path", path, "error", err)
		}
	}()

	payload := r.Payload
	if payload == nil {
		payload = DefaultPayload
	}
	res.Command = BuildCommand(tmpl.Prefix, payload, path)
	_, _ = fmt.Fprintf(out, "\t-> command: %s\n", strings.Join(res.Command, " "))

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := r.Start
	if start == nil {
		start = startDiscarded
	}

	slog.Debug("Starting terminal", "terminal", tmpl.Name, "argv", res.Command)
	code, err := start(runCtx, res.Command, r.Dir)
	if err != nil {
		res.Err = &SpawnError{Name: tmpl.Name, Err: err}
		return res
	}
	// the exit code is recorded, never acted upon
	res.ExitCode = code
	if code != 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		slog.Warn("Terminal timed out and was killed", "terminal", tmpl.Name, "timeout", r.Timeout)
	}
	slog.Debug("Terminal exited", "terminal", tmpl.Name, "exit_code", code)

	if r.Linger != nil {
		procs, err := r.Linger(ctx, path)
		if err != nil {
			slog.Warn("Failed to check for lingering processes", "terminal", tmpl.Name, "error", err)
		}
		res.Lingering = procs
		for _, p := range procs {
			_, _ = fmt.Fprintf(out, "\t-> lingering: %s\n", p)
			slog.Warn("Payload still running after terminal exited", "terminal", tmpl.Name, "pid", p.PID)
		}
	}

	lines, err := ReadLines(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read result file for %s: %w", tmpl.Name, err)
		return res
	}
	res.Lines = lines
	_, _ = fmt.Fprintf(out, "\t-> output: %s\n", FormatLines(lines))

	return res
}

// startDiscarded runs argv with the runner's stdin and with stdout and
// stderr connected to the null device.
func startDiscarded(ctx context.Context, argv []string, dir string) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
