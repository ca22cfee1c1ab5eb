package smoketest

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// ReadLines returns the lines of the file at path. Each line keeps its
// trailing newline; a last line without one is returned as is. An empty
// file yields an empty slice and no error.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	lines := []string{}
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// FormatLines renders lines as a quoted list, e.g. ["ffff/ffff/ffff\n"].
func FormatLines(lines []string) string {
	return fmt.Sprintf("%q", lines)
}
