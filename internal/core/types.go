package core

import "encoding/json"

const (
	AppName      = "Osseus"
	AppUserAgent = "Osseus-Engine/0.1"
	AppVersion   = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// DefaultModel is the reserved model name that routes to the first
// default-capable backend.
const DefaultModel = "default"

type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Images     [][]byte   `json:"images,omitempty"`
}

// Valid reports whether the message satisfies the protocol invariants:
// an assistant message must carry content or tool calls, a tool message
// must reference the call it answers.
func (m Message) Valid() bool {
	switch m.Role {
	case RoleAssistant:
		return m.Content != "" || len(m.ToolCalls) > 0
	case RoleTool:
		return m.ToolCallID != ""
	}
	return true
}

const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceFunction = "function"
)

// ToolChoice controls which tool, if any, the model is steered toward.
type ToolChoice struct {
	Mode string // ToolChoiceAuto, ToolChoiceNone or ToolChoiceFunction
	Name string // set when Mode == ToolChoiceFunction
}

// Request is a provider-agnostic generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stream      bool
	Tools       []Tool
	ToolChoice  ToolChoice
}

// ToolInvocation reports a completed function-call decision made by the
// model mid-generation. It is a control-flow value, not an error: the
// engine's tool loop consumes it and re-enters generation.
type ToolInvocation struct {
	Name      string
	Arguments string
	CallID    string // preserved provider call id, may be empty
}

// Chunk is one item of a delta stream. Exactly one field is set: Text for
// an incremental delta, Invocation when the model requested a tool, Err
// when generation failed.
type Chunk struct {
	Text       string
	Invocation *ToolInvocation
	Err        error
}

const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of a non-streaming chat call.
type Completion struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Model describes a servable model.
type Model struct {
	ID            string
	Name          string
	ContextLength int
}
