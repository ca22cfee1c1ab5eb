package linger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// Proc is a process that is still running after the emulator returned
type Proc struct {
	PID     int32
	Name    string
	Cmdline string
}

func (p Proc) String() string {
	return fmt.Sprintf("%d %s", p.PID, p.Cmdline)
}

// Find returns the processes of the current user whose command line contains
// marker. The calling process is never included. Processes that exit while
// the table is scanned are skipped.
func Find(ctx context.Context, marker string) ([]Proc, error) {
	if marker == "" {
		return nil, fmt.Errorf("empty marker")
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get processes: %w", err)
	}

	self := int32(os.Getpid())
	uid := uint32(os.Getuid())

	var found []Proc
	for _, p := range procs {
		if p.Pid == self {
			continue
		}

		// Check if process belongs to the user
		uids, err := p.UidsWithContext(ctx)
		if err != nil || len(uids) == 0 || uint32(uids[0]) != uid {
			continue
		}

		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || !strings.Contains(cmdline, marker) {
			continue
		}

		info := Proc{PID: p.Pid, Cmdline: cmdline}
		if name, err := p.NameWithContext(ctx); err == nil {
			info.Name = name
		}
		found = append(found, info)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].PID < found[j].PID })
	return found, nil
}

// Terminate sends SIGTERM to every process in procs. Processes that already
// exited are ignored; the first other failure is returned after all
// processes were tried.
func Terminate(ctx context.Context, procs []Proc) error {
	var firstErr error
	for _, lp := range procs {
		p, err := process.NewProcessWithContext(ctx, lp.PID)
		if err != nil {
			continue
		}
		if err := p.SendSignalWithContext(ctx, syscall.SIGTERM); err != nil {
			if strings.Contains(err.Error(), "no such process") {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to send signal to %d: %w", lp.PID, err)
			}
		}
	}
	return firstErr
}
