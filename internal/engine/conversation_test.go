package engine

import (
	"reflect"
	"testing"

	"github.com/sauruslabs/osseus/internal/core"
)

func TestConversationAppendAndLen(t *testing.T) {
	c := NewConversation("you are helpful")
	if c.Len() != 1 {
		t.Fatalf("Len() = %d after init, want 1", c.Len())
	}

	c.Append(core.Message{Role: core.RoleUser, Content: "hi"})
	c.Append(core.Message{Role: core.RoleAssistant, Content: "hello"})

	want := []core.Message{
		{Role: core.RoleSystem, Content: "you are helpful"},
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
	}
	if got := c.Messages(); !reflect.DeepEqual(got, want) {
		t.Errorf("Messages() = %+v, want %+v", got, want)
	}
}

func TestConversationMessagesReturnsCopy(t *testing.T) {
	c := NewConversation("")
	c.Append(core.Message{Role: core.RoleUser, Content: "original"})

	got := c.Messages()
	got[0].Content = "mutated"

	if c.Messages()[0].Content != "original" {
		t.Error("Messages() exposed internal state")
	}
}

func TestConversationReset(t *testing.T) {
	c := NewConversation("system prompt")
	c.Append(core.Message{Role: core.RoleUser, Content: "hi"})
	c.Append(core.Message{Role: core.RoleAssistant, Content: "hello"})

	c.Reset()

	got := c.Messages()
	if len(got) != 1 || got[0].Role != core.RoleSystem || got[0].Content != "system prompt" {
		t.Errorf("after Reset: %+v, want only the system prompt", got)
	}
}

func TestConversationResetWithoutSystem(t *testing.T) {
	c := NewConversation("")
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after empty init, want 0", c.Len())
	}
	c.Append(core.Message{Role: core.RoleUser, Content: "hi"})

	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", c.Len())
	}
}
