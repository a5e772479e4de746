package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/sauruslabs/osseus/internal/core"
)

func testTools() []core.Tool {
	return []core.Tool{
		{Type: "function", Function: core.Function{Name: "fetch_url", Description: "Fetch content from a URL", Parameters: json.RawMessage(`{}`)}},
		{Type: "function", Function: core.Function{Name: "read_file", Description: "Read a file", Parameters: json.RawMessage(`{}`)}},
	}
}

func testSkills() []SkillInfo {
	return []SkillInfo{
		{Name: "code-review", Description: "Review code changes"},
		{Name: "summarize", Description: "Summarize long documents"},
	}
}

type fakeLoader struct {
	calls [][]string
	fail  bool
}

func (f *fakeLoader) LoadInstructions(ctx context.Context, names []string) (map[string]string, error) {
	f.calls = append(f.calls, names)
	if f.fail {
		return nil, fmt.Errorf("loader broke")
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = "instructions for " + n
	}
	return out, nil
}

func TestSelectorPhaseOneToolset(t *testing.T) {
	s := NewSelector(testTools(), testSkills(), nil, nil)

	tools := s.Toolset()
	if len(tools) != 1 {
		t.Fatalf("phase one toolset has %d tools, want 1", len(tools))
	}
	if tools[0].Function.Name != MetaToolName {
		t.Errorf("phase one tool = %q, want %q", tools[0].Function.Name, MetaToolName)
	}
}

func TestSelectorPhaseOnePromptCarriesCatalog(t *testing.T) {
	s := NewSelector(testTools(), testSkills(), nil, nil)

	prompt := s.SystemPrompt("You are helpful.")
	for _, want := range []string{
		"You are helpful.",
		"CAPABILITY CATALOG:",
		"tool fetch_url",
		"tool read_file",
		"skill code-review",
		"skill summarize",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	// Full schemas stay out of the catalog.
	if strings.Contains(prompt, "Parameters") {
		t.Error("catalog should not carry schemas")
	}
}

func TestSelectorSelectActivates(t *testing.T) {
	loader := &fakeLoader{}
	s := NewSelector(testTools(), testSkills(), loader, nil)

	result := s.Select(context.Background(), `{"tools":["fetch_url"],"skills":["code-review"]}`)
	if !strings.Contains(result, "Activated tools: fetch_url") {
		t.Errorf("result = %q", result)
	}
	if !strings.Contains(result, "Activated skills: code-review") {
		t.Errorf("result = %q", result)
	}
	if !s.Selected() {
		t.Fatal("selector should report selected")
	}

	// Phase two toolset: chosen tools plus the meta-tool.
	tools := s.Toolset()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Function.Name)
	}
	if !reflect.DeepEqual(names, []string{"fetch_url", MetaToolName}) {
		t.Errorf("phase two toolset = %v", names)
	}

	// Skill instructions now decorate the prompt.
	prompt := s.SystemPrompt("")
	if !strings.Contains(prompt, "instructions for code-review") {
		t.Errorf("prompt missing skill instructions:\n%s", prompt)
	}
	// Unselected capabilities remain discoverable.
	if !strings.Contains(prompt, "ADDITIONAL CAPABILITIES AVAILABLE") {
		t.Errorf("prompt missing remaining-capability reminder:\n%s", prompt)
	}
	if !strings.Contains(prompt, "read_file") || !strings.Contains(prompt, "summarize") {
		t.Errorf("prompt missing unselected capabilities:\n%s", prompt)
	}
}

func TestSelectorUnknownNamesWarnNotFail(t *testing.T) {
	s := NewSelector(testTools(), testSkills(), &fakeLoader{}, nil)

	result := s.Select(context.Background(), `{"tools":["fetch_url","bogus"],"skills":["nope"]}`)
	if !strings.Contains(result, "Activated tools: fetch_url") {
		t.Errorf("valid selection lost: %q", result)
	}
	if !strings.Contains(result, `unknown or disabled tool "bogus"`) {
		t.Errorf("missing tool warning: %q", result)
	}
	if !strings.Contains(result, `unknown or disabled skill "nope"`) {
		t.Errorf("missing skill warning: %q", result)
	}
	if !s.Selected() {
		t.Error("partial success should still select")
	}
}

func TestSelectorMalformedArguments(t *testing.T) {
	s := NewSelector(testTools(), testSkills(), nil, nil)

	result := s.Select(context.Background(), `{not json`)
	if !strings.Contains(result, "No capabilities activated") {
		t.Errorf("result = %q", result)
	}
	if s.Selected() {
		t.Error("malformed selection must not flip state")
	}
}

func TestSelectorIdempotentSelection(t *testing.T) {
	loader := &fakeLoader{}
	s := NewSelector(testTools(), testSkills(), loader, nil)

	s.Select(context.Background(), `{"skills":["code-review"]}`)
	s.Select(context.Background(), `{"skills":["code-review"],"tools":["read_file"]}`)

	if got := s.SelectedSkillNames(); !reflect.DeepEqual(got, []string{"code-review"}) {
		t.Errorf("selected skills = %v", got)
	}
	if got := s.SelectedToolNames(); !reflect.DeepEqual(got, []string{"read_file"}) {
		t.Errorf("selected tools = %v", got)
	}
	// Instructions loaded once per skill, not per call.
	if len(loader.calls) != 1 {
		t.Errorf("loader called %d times, want 1", len(loader.calls))
	}
}

func TestSelectorOverridesDisable(t *testing.T) {
	overrides := map[string]bool{"fetch_url": false}
	s := NewSelector(testTools(), testSkills(), nil, overrides)

	prompt := s.SystemPrompt("")
	if strings.Contains(prompt, "fetch_url") {
		t.Error("disabled tool leaked into catalog")
	}

	result := s.Select(context.Background(), `{"tools":["fetch_url"]}`)
	if !strings.Contains(result, `unknown or disabled tool "fetch_url"`) {
		t.Errorf("result = %q", result)
	}
}

func TestSelectorLoaderFailureWarns(t *testing.T) {
	loader := &fakeLoader{fail: true}
	s := NewSelector(testTools(), testSkills(), loader, nil)

	result := s.Select(context.Background(), `{"skills":["summarize"]}`)
	if !strings.Contains(result, "Activated skills: summarize") {
		t.Errorf("result = %q", result)
	}
	if !strings.Contains(result, "skill instructions unavailable") {
		t.Errorf("missing loader warning: %q", result)
	}
}

func TestSelectorReset(t *testing.T) {
	s := NewSelector(testTools(), testSkills(), &fakeLoader{}, nil)
	s.Select(context.Background(), `{"tools":["fetch_url"]}`)
	s.Reset()

	if s.Selected() {
		t.Error("reset should clear selection")
	}
	if tools := s.Toolset(); len(tools) != 1 || tools[0].Function.Name != MetaToolName {
		t.Errorf("toolset after reset = %v", tools)
	}
}
