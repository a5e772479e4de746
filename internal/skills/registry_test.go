package skills

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sauruslabs/osseus/internal/capability"
)

func writeSkill(t *testing.T, root, dir, content string) {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const weatherSkill = `---
name: weather-report
description: Summarize weather data for a location
---

# Weather Report

Fetch the forecast, then summarize it in two sentences.
`

const codeSkill = `---
name: code-review
description: Review a diff for correctness
---

Focus on logic errors first, style second.
`

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "weather", weatherSkill)
	writeSkill(t, root, "review", codeSkill)

	r, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	want := []capability.SkillInfo{
		{Name: "code-review", Description: "Review a diff for correctness"},
		{Name: "weather-report", Description: "Summarize weather data for a location"},
	}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %+v, want %+v", got, want)
	}
}

func TestDiscoverSkipsMalformed(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "good", weatherSkill)
	writeSkill(t, root, "no-front", "just a markdown body\n")
	writeSkill(t, root, "bad-name", "---\nname: Not Valid\ndescription: x\n---\nbody\n")
	writeSkill(t, root, "no-desc", "---\nname: quiet\n---\nbody\n")
	// Directory without a SKILL.md at all.
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	r, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if got := r.List(); len(got) != 1 || got[0].Name != "weather-report" {
		t.Errorf("List() = %+v, want only weather-report", got)
	}
}

func TestDiscoverMissingDirIgnored(t *testing.T) {
	r, err := Discover(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if got := r.List(); len(got) != 0 {
		t.Errorf("List() = %+v, want empty", got)
	}
}

func TestDiscoverEarlierDirWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeSkill(t, first, "weather", weatherSkill)
	writeSkill(t, second, "weather", `---
name: weather-report
description: The shadowed copy
---
shadowed body
`)

	r, err := Discover(first, second)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	got := r.List()
	if len(got) != 1 {
		t.Fatalf("List() = %+v, want one skill", got)
	}
	if got[0].Description != "Summarize weather data for a location" {
		t.Errorf("description = %q, want the first directory's copy", got[0].Description)
	}
}

func TestLoadInstructions(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "weather", weatherSkill)
	writeSkill(t, root, "review", codeSkill)

	r, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	got, err := r.LoadInstructions(context.Background(), []string{"weather-report"})
	if err != nil {
		t.Fatalf("LoadInstructions() error: %v", err)
	}
	want := "# Weather Report\n\nFetch the forecast, then summarize it in two sentences."
	if got["weather-report"] != want {
		t.Errorf("instructions = %q, want %q", got["weather-report"], want)
	}
}

func TestLoadInstructionsUnknownName(t *testing.T) {
	r, err := Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.LoadInstructions(context.Background(), []string{"ghost"}); err == nil {
		t.Fatal("LoadInstructions() expected error for unknown skill")
	}
}

func TestSplitFrontmatter(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		front   string
		body    string
		wantErr bool
	}{
		{
			name:  "well formed",
			in:    "---\nname: x\n---\nbody text\n",
			front: "name: x",
			body:  "body text\n",
		},
		{
			name:    "missing opening delimiter",
			in:      "name: x\n---\nbody\n",
			wantErr: true,
		},
		{
			name:    "unterminated",
			in:      "---\nname: x\nbody\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			front, body, err := splitFrontmatter(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("splitFrontmatter() error: %v", err)
			}
			if front != tt.front || body != tt.body {
				t.Errorf("got (%q, %q), want (%q, %q)", front, body, tt.front, tt.body)
			}
		})
	}
}
