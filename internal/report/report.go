package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"termsmoke/internal/smoketest"
	"termsmoke/pkg/markdown"
)

// Summary collects results while a run is in progress
type Summary struct {
	Started time.Time
	Results []smoketest.Result
	Err     error // error that ended the run, if any
}

// New returns an empty summary started now
func New() *Summary {
	return &Summary{Started: time.Now()}
}

// Add records a finished entry. It matches smoketest.Runner.Observer.
func (s *Summary) Add(res smoketest.Result) {
	s.Results = append(s.Results, res)
}

func status(res smoketest.Result) string {
	switch {
	case res.Err != nil:
		return "not started"
	case res.TimedOut:
		return "timed out"
	case len(res.Lines) == 0:
		return "no output"
	default:
		return "ok"
	}
}

// Markdown renders the summary as a Markdown document
func (s *Summary) Markdown() string {
	var b strings.Builder

	b.WriteString("# Terminal smoke test\n\n")
	fmt.Fprintf(&b, "Started %s, %d terminal(s).\n\n", s.Started.Format(time.RFC3339), len(s.Results))
	if s.Err != nil {
		fmt.Fprintf(&b, "**Run aborted:** `%s`\n\n", s.Err)
	}

	b.WriteString("| Terminal | Status | Exit | Lines | Duration |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, res := range s.Results {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s |\n",
			escapeCell(res.Name), status(res), res.ExitCode, len(res.Lines), res.Duration.Round(time.Millisecond))
	}

	for _, res := range s.Results {
		fmt.Fprintf(&b, "\n## %s\n\n", res.Name)
		fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.Join(res.Command, " "))
		if res.Err != nil {
			fmt.Fprintf(&b, "Error: `%s`\n", res.Err)
			continue
		}
		if len(res.Lingering) > 0 {
			b.WriteString("Still running after the terminal exited:\n\n")
			for _, p := range res.Lingering {
				fmt.Fprintf(&b, "- `%s`\n", p)
			}
			b.WriteString("\n")
		}
		if len(res.Lines) == 0 {
			b.WriteString("No output.\n")
			continue
		}
		b.WriteString("```\n")
		for _, line := range res.Lines {
			b.WriteString(strings.TrimRight(line, "\n"))
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}

	return b.String()
}

// HTML renders the summary as sanitized HTML
func (s *Summary) HTML() string {
	return markdown.RenderToHTML(s.Markdown())
}

// WriteHTML writes a standalone HTML page to path
func (s *Summary) WriteHTML(path string) error {
	page := "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Terminal smoke test</title></head><body>\n" +
		s.HTML() +
		"</body></html>\n"
	if err := os.WriteFile(path, []byte(page), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
