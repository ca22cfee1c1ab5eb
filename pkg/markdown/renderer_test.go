package markdown

import (
	"strings"
	"testing"
)

func TestRenderToHTML_BasicMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{
			name:     "headers",
			input:    "# Terminal smoke test\n## xterm",
			contains: []string{"<h1", "Terminal smoke test", "<h2", "xterm"},
		},
		{
			name:     "bold",
			input:    "**Run aborted:** `failed to start foot`",
			contains: []string{"<strong>Run aborted:</strong>", "<code>failed to start foot</code>"},
		},
		{
			name:  "code block",
			input: "```\nffff/ffff/ffff\n0/0/0\n```",
			contains: []string{
				"<pre>", "<code>", "ffff/ffff/ffff", "0/0/0",
			},
		},
		{
			name:     "unordered list",
			input:    "- `7 cargo run`\n- `8 cargo run`",
			contains: []string{"<ul>", "<li><code>7 cargo run</code></li>", "</ul>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderToHTML(tt.input)

			for _, expected := range tt.contains {
				if !strings.Contains(result, expected) {
					t.Errorf("RenderToHTML() result doesn't contain expected substring.\nExpected: %q\nResult: %s", expected, result)
				}
			}
		})
	}
}

func TestRenderToHTML_HeadingIDs(t *testing.T) {
	result := RenderToHTML("## Gnome Terminal")

	if !strings.Contains(result, `id="gnome-terminal"`) {
		t.Errorf("Expected heading id, got %s", result)
	}
}

func TestRenderToHTML_XSSPrevention(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		shouldBlock string
	}{
		{
			name:        "script tag",
			input:       "## <script>alert('xss')</script>",
			shouldBlock: "<script>",
		},
		{
			name:        "onclick handler",
			input:       "<a href=\"#\" onclick=\"alert('xss')\">Click me</a>",
			shouldBlock: "onclick",
		},
		{
			name:        "javascript protocol",
			input:       "[Click me](javascript:alert('xss'))",
			shouldBlock: "javascript:",
		},
		{
			name:        "iframe",
			input:       "<iframe src=\"http://evil.com\"></iframe>",
			shouldBlock: "<iframe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderToHTML(tt.input)

			if strings.Contains(result, tt.shouldBlock) {
				t.Errorf("XSS vector not blocked.\nInput: %s\nBlocked string: %q\nResult: %s",
					tt.input, tt.shouldBlock, result)
			}
		})
	}
}

func TestRenderToHTML_Empty(t *testing.T) {
	if result := strings.TrimSpace(RenderToHTML("")); result != "" {
		t.Errorf("RenderToHTML() = %q, want empty string", result)
	}
}

func TestRenderToHTML_TableSupport(t *testing.T) {
	input := `| Terminal | Status |
|---|---|
| foot | ok |
| xterm | no output |`

	result := RenderToHTML(input)

	expectedElements := []string{
		"<table>",
		"<thead>", "<tbody>",
		"<tr>", "<th>", "<td>",
		"Terminal", "Status",
		"foot", "no output",
	}

	for _, expected := range expectedElements {
		if !strings.Contains(result, expected) {
			t.Errorf("Table markdown missing expected element: %q", expected)
		}
	}
}
