package engine

import (
	"strings"
	"testing"

	"github.com/sauruslabs/osseus/internal/core"
)

func TestHeuristicEstimator(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0}, // never called with empty content, but len/4 floor applies
		{"a", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if tt.text == "" {
			continue
		}
		if got := (HeuristicEstimator{}).Estimate(tt.text); got != tt.want {
			t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestMessageTokensCountsToolCalls(t *testing.T) {
	b := NewBudgeter(nil)

	plain := core.Message{Role: core.RoleUser, Content: strings.Repeat("a", 40)}
	if got := b.MessageTokens(plain); got != 10 {
		t.Errorf("plain message tokens = %d, want 10", got)
	}

	withCall := core.Message{
		Role:    core.RoleAssistant,
		Content: strings.Repeat("a", 40),
		ToolCalls: []core.ToolCall{{
			ID:       "call_1",
			Function: core.FunctionCall{Name: "fetch_url", Arguments: `{"url":"https://example.com"}`},
		}},
	}
	if got := b.MessageTokens(withCall); got <= 10 {
		t.Errorf("tool call cost not counted: %d", got)
	}
}

func TestPruneKeepsSystemMessages(t *testing.T) {
	b := NewBudgeter(nil)

	big := strings.Repeat("x", 8000) // 2000 tokens each
	msgs := []core.Message{
		{Role: core.RoleSystem, Content: "system prompt"},
		{Role: core.RoleUser, Content: big},
		{Role: core.RoleAssistant, Content: big},
		{Role: core.RoleUser, Content: big},
		{Role: core.RoleAssistant, Content: big},
		{Role: core.RoleUser, Content: "latest question"},
	}

	// budget = max(2048, 8192-4096) = 4096: only ~2 big messages fit
	got := b.Prune(msgs, 8192, 0)

	if got[0].Role != core.RoleSystem {
		t.Fatal("system message must stay first")
	}
	for _, m := range got {
		if m.Role == core.RoleSystem && m.Content != "system prompt" {
			t.Errorf("system message mutated: %q", m.Content)
		}
	}
	// The newest user turn survives.
	last := got[len(got)-1]
	if last.Content != "latest question" {
		t.Errorf("latest message evicted, tail = %q", last.Content)
	}
	if len(got) >= len(msgs) {
		t.Errorf("nothing pruned: %d messages", len(got))
	}
}

func TestPruneEvictsOldestFirst(t *testing.T) {
	b := NewBudgeter(nil)

	big := strings.Repeat("x", 12000)
	msgs := []core.Message{
		{Role: core.RoleUser, Content: "oldest"},
		{Role: core.RoleAssistant, Content: big},
		{Role: core.RoleUser, Content: big},
		{Role: core.RoleUser, Content: "newest"},
	}

	got := b.Prune(msgs, 8192, 0)

	for _, m := range got {
		if m.Content == "oldest" {
			t.Fatal("oldest message should be evicted first")
		}
	}
	if got[len(got)-1].Content != "newest" {
		t.Error("newest message must survive")
	}
}

func TestPruneNeverLeavesLeadingToolResult(t *testing.T) {
	b := NewBudgeter(nil)

	big := strings.Repeat("x", 12000)
	msgs := []core.Message{
		{Role: core.RoleSystem, Content: "sys"},
		{Role: core.RoleAssistant, Content: big, ToolCalls: []core.ToolCall{{ID: "call_1"}}},
		{Role: core.RoleTool, ToolCallID: "call_1", Content: "result"},
		{Role: core.RoleUser, Content: big},
		{Role: core.RoleAssistant, Content: "answer"},
	}

	got := b.Prune(msgs, 8192, 0)

	idx := firstNonSystem(got)
	if idx >= 0 && got[idx].Role == core.RoleTool {
		t.Fatalf("window starts with orphaned tool result: %+v", got[idx])
	}
}

func TestPruneKeepsLastMessageEvenOverBudget(t *testing.T) {
	b := NewBudgeter(nil)

	huge := strings.Repeat("x", 100000)
	msgs := []core.Message{
		{Role: core.RoleSystem, Content: "sys"},
		{Role: core.RoleUser, Content: huge},
	}

	got := b.Prune(msgs, 4096, 0)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want both kept", len(got))
	}
}

func TestPruneRespectsMaxTokensReserve(t *testing.T) {
	b := NewBudgeter(nil)

	// 1000 tokens of history in a 8192 context.
	msg := strings.Repeat("x", 4000)
	msgs := []core.Message{
		{Role: core.RoleUser, Content: msg},
		{Role: core.RoleUser, Content: "tail"},
	}

	// With a small reserve everything fits.
	if got := b.Prune(msgs, 8192, 512); len(got) != 2 {
		t.Errorf("small reserve pruned history: %d messages", len(got))
	}
}

func TestPruneUntouchedWhenUnderBudget(t *testing.T) {
	b := NewBudgeter(nil)

	msgs := []core.Message{
		{Role: core.RoleSystem, Content: "sys"},
		{Role: core.RoleUser, Content: "hello"},
		{Role: core.RoleAssistant, Content: "hi"},
	}
	got := b.Prune(msgs, 32768, 0)
	if len(got) != len(msgs) {
		t.Errorf("under-budget history modified: %d messages", len(got))
	}
}
