package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Template describes how to launch a terminal emulator so that it runs a
// trailing command. Prefix holds the executable followed by the flags that
// precede that command.
type Template struct {
	Name   string   `toml:"name"`
	Prefix []string `toml:"prefix"`
}

// Catalog is an ordered list of templates. Order is execution order.
type Catalog []Template

// cwdPlaceholder is replaced by the working directory in prefixes loaded from a file
const cwdPlaceholder = "{{cwd}}"

// Default returns the built-in catalog. workDir is passed to emulators that
// need an explicit working directory.
func Default(workDir string) Catalog {
	return Catalog{
		{Name: "Alacritty", Prefix: []string{"alacritty", "--command"}},
		{Name: "contour", Prefix: []string{"contour", "working-directory", workDir, "--"}},
		{Name: "foot", Prefix: []string{"foot", "--"}},
		{Name: "st", Prefix: []string{"st", "--"}},
		{Name: "Kitty", Prefix: []string{"kitty", "--"}},
		{Name: "Konsole", Prefix: []string{"konsole", "-e"}},
		{Name: "Gnome Terminal", Prefix: []string{"gnome-terminal", "--wait", "--verbose", "--"}},
		{Name: "Terminology", Prefix: []string{"terminology", "--exec"}},
		{Name: "rxvt-unicode", Prefix: []string{"urxvt", "-e"}},
		{Name: "xterm", Prefix: []string{"xterm", "-e"}},
	}
}

type catalogFile struct {
	Terminal []Template `toml:"terminal"`
}

// Load reads a catalog from a TOML file made of [[terminal]] tables.
// The order of the tables is kept. Any "{{cwd}}" inside a prefix token is
// replaced by workDir.
func Load(path, workDir string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(string(data), workDir)
}

// Parse decodes catalog TOML. See Load.
func Parse(data, workDir string) (Catalog, error) {
	var f catalogFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := make(Catalog, 0, len(f.Terminal))
	for _, t := range f.Terminal {
		prefix := make([]string, len(t.Prefix))
		for i, tok := range t.Prefix {
			prefix[i] = strings.ReplaceAll(tok, cwdPlaceholder, workDir)
		}
		c = append(c, Template{Name: t.Name, Prefix: prefix})
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that names are non-empty and unique and that every prefix
// starts with an executable.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]bool, len(c))
	for i, t := range c {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("entry %d: name is empty", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("entry %d: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
		if len(t.Prefix) == 0 || t.Prefix[0] == "" {
			return fmt.Errorf("entry %q: prefix must start with an executable", t.Name)
		}
	}
	return nil
}

// Select keeps only the named entries, in catalog order.
// An empty names list returns the catalog unchanged.
func (c Catalog) Select(names []string) (Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var out Catalog
	for _, t := range c {
		if wanted[t.Name] {
			out = append(out, t)
			delete(wanted, t.Name)
		}
	}

	if len(wanted) > 0 {
		var unknown []string
		// keep the caller's order in the error message
		for _, n := range names {
			if wanted[n] {
				unknown = append(unknown, n)
				delete(wanted, n)
			}
		}
		return nil, fmt.Errorf("unknown terminal(s): %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(c.Names(), ", "))
	}
	return out, nil
}

// Names returns the entry names in order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}
