package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"termsmoke/internal/catalog"
	"termsmoke/internal/linger"
	"termsmoke/internal/ptyrun"
	"termsmoke/internal/report"
	"termsmoke/internal/smoketest"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

type runOptions struct {
	only        []string
	catalogFile string
	dir         string
	timeout     time.Duration
	keepGoing   bool
	ptyBaseline bool
	reportFile  string
	noLock      bool
	reap        bool
}

// lockPath is shared by all runs of the current user
func lockPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("termsmoke-%d.lock", os.Getuid()))
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadCatalog returns the built-in catalog or the one from opts.catalogFile,
// narrowed to opts.only.
func loadCatalog(opts *runOptions) (catalog.Catalog, error) {
	c := catalog.Default(opts.dir)
	if opts.catalogFile != "" {
		var err error
		c, err = catalog.Load(opts.catalogFile, opts.dir)
		if err != nil {
			return nil, err
		}
	}
	return c.Select(opts.only)
}

// resolveDir fills opts.dir with the current directory when unset
func resolveDir(opts *runOptions) error {
	if opts.dir != "" {
		abs, err := filepath.Abs(opts.dir)
		if err != nil {
			return fmt.Errorf("failed to resolve directory: %w", err)
		}
		opts.dir = abs
		return nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	opts.dir = wd
	return nil
}

func runTests(cmd *cobra.Command, opts *runOptions) error {
	if err := resolveDir(opts); err != nil {
		return err
	}

	c, err := loadCatalog(opts)
	if err != nil {
		return err
	}

	if !opts.noLock {
		fileLock := flock.New(lockPath())
		locked, err := fileLock.TryLock()
		if err != nil {
			return fmt.Errorf("acquiring lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another run is in progress (lock held on %s)", lockPath())
		}
		defer func() { _ = fileLock.Unlock() }()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := report.New()
	out := cmd.OutOrStdout()

	var lingerFn smoketest.LingerFunc
	if opts.reap {
		lingerFn = reapLingering
	} else {
		lingerFn = linger.Find
	}

	runner := &smoketest.Runner{
		Catalog:   c,
		Payload:   smoketest.DefaultPayload,
		Dir:       opts.dir,
		Out:       out,
		Timeout:   opts.timeout,
		KeepGoing: opts.keepGoing,
		Linger:    lingerFn,
		Observer:  summary.Add,
	}

	var runErr error
	if opts.ptyBaseline {
		runErr = runBaseline(ctx, runner)
	}
	var spawnErr *smoketest.SpawnError
	if runErr == nil || (opts.keepGoing && errors.As(runErr, &spawnErr)) {
		_, err := runner.Run(ctx)
		runErr = errors.Join(runErr, err)
	}

	if opts.reportFile != "" {
		summary.Err = runErr
		if err := summary.WriteHTML(opts.reportFile); err != nil {
			slog.Error("Failed to write report", "path", opts.reportFile, "error", err)
		} else {
			slog.Info("Report written", "path", opts.reportFile)
		}
	}

	return runErr
}

// runBaseline runs the payload once on a bare pseudo-terminal, before any
// real emulator, using the same runner settings.
func runBaseline(ctx context.Context, r *smoketest.Runner) error {
	size := ptyrun.CurrentSize()
	baseline := *r
	baseline.Catalog = catalog.Catalog{{Name: "pty (baseline)"}}
	baseline.Start = func(ctx context.Context, argv []string, dir string) (int, error) {
		return ptyrun.Run(ctx, argv, dir, size)
	}
	_, err := baseline.Run(ctx)
	return err
}

// reapLingering reports lingering payload processes and terminates them so
// they do not write into the next entry's terminal session.
func reapLingering(ctx context.Context, marker string) ([]linger.Proc, error) {
	procs, err := linger.Find(ctx, marker)
	if err != nil || len(procs) == 0 {
		return procs, err
	}
	if err := linger.Terminate(ctx, procs); err != nil {
		slog.Warn("Failed to terminate lingering processes", "error", err)
	}
	return procs, nil
}

func listCatalog(w io.Writer, c catalog.Catalog) {
	for _, t := range c {
		_, _ = fmt.Fprintf(w, "%s: %s\n", t.Name, strings.Join(t.Prefix, " "))
	}
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "termsmoke",
		Short: "termsmoke - Terminal emulator smoke tests",
		Long: `termsmoke launches every known terminal emulator with the query example
and prints what the example wrote into its result file.

Without a sub command it behaves like "termsmoke run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, &runOptions{})
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages to stderr")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the smoke test for every terminal in the catalog",
		Long: `Run the smoke test for every terminal in the catalog, one after the other.

For each terminal a temporary result file is created, the terminal is started
with "cargo run --example query -- <file>" and the lines of the file are
printed once the terminal exits. A terminal that cannot be started stops the
run unless --keep-going is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts)
		},
	}
	runCmd.Flags().StringArrayVar(&opts.only, "only", nil, "Only test the named terminal (repeatable)")
	runCmd.Flags().StringVar(&opts.catalogFile, "catalog", "", "Read the terminal catalog from a TOML file")
	runCmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Working directory for the terminals (default: current directory)")
	runCmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Kill a terminal after this duration (default: wait forever)")
	runCmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "Continue with the next terminal when one cannot be started")
	runCmd.Flags().BoolVar(&opts.ptyBaseline, "pty-baseline", false, "Run the payload on a bare pseudo-terminal first")
	runCmd.Flags().StringVar(&opts.reportFile, "report", "", "Write an HTML report to this file")
	runCmd.Flags().BoolVar(&opts.noLock, "no-lock", false, "Do not take the lock that prevents parallel runs")
	runCmd.Flags().BoolVar(&opts.reap, "reap", false, "Terminate payload processes still running after their terminal exited")

	listOpts := &runOptions{}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the terminal catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveDir(listOpts); err != nil {
				return err
			}
			c, err := loadCatalog(listOpts)
			if err != nil {
				return err
			}
			listCatalog(cmd.OutOrStdout(), c)
			return nil
		},
	}
	listCmd.Flags().StringVar(&listOpts.catalogFile, "catalog", "", "Read the terminal catalog from a TOML file")
	listCmd.Flags().StringVarP(&listOpts.dir, "dir", "d", "", "Working directory substituted into the catalog")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
