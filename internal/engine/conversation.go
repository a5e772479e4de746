package engine

import (
	"sync"

	"github.com/sauruslabs/osseus/internal/core"
)

// Conversation is the durable record of a chat session. It keeps every
// turn unmodified; pruning happens on the outbound copy only, so a later
// request with a larger budget sees the full history again.
type Conversation struct {
	mu   sync.Mutex
	msgs []core.Message
}

func NewConversation(system string) *Conversation {
	c := &Conversation{}
	if system != "" {
		c.msgs = append(c.msgs, core.Message{Role: core.RoleSystem, Content: system})
	}
	return c
}

func (c *Conversation) Append(msg core.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

// Messages returns a copy of the recorded history.
func (c *Conversation) Messages() []core.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Message(nil), c.msgs...)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// Reset drops everything except the leading system prompt, if any.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) > 0 && c.msgs[0].Role == core.RoleSystem {
		c.msgs = c.msgs[:1]
		return
	}
	c.msgs = nil
}
