package conv

import (
	"strings"
	"testing"
)

func TestMarkdownToText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "plain text",
			input:    "Hello world",
			contains: []string{"Hello world"},
		},
		{
			name:     "bold stripped to text",
			input:    "**bold**",
			contains: []string{"bold"},
			excludes: []string{"**", "<strong>"},
		},
		{
			name:     "header rendered as text",
			input:    "# Title",
			contains: []string{"Title"},
			excludes: []string{"#", "<h1>"},
		},
		{
			name:     "list items preserved",
			input:    "- one\n- two",
			contains: []string{"one", "two"},
		},
		{
			name:     "link keeps url",
			input:    "[docs](https://example.com)",
			contains: []string{"docs", "https://example.com"},
		},
		{
			name:     "script tags sanitized away",
			input:    "<script>alert('xss')</script>safe",
			contains: []string{"safe"},
			excludes: []string{"alert", "script"},
		},
		{
			name:     "code block content kept",
			input:    "```go\nfunc main() {}\n```",
			contains: []string{"func main() {}"},
			excludes: []string{"```"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkdownToText([]byte(tt.input))
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("MarkdownToText(%q) = %q, missing %q", tt.input, got, want)
				}
			}
			for _, not := range tt.excludes {
				if strings.Contains(got, not) {
					t.Errorf("MarkdownToText(%q) = %q, should not contain %q", tt.input, got, not)
				}
			}
		})
	}
}
