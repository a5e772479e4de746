// Package engine orchestrates chat generation: it routes requests to a
// backend, drives streaming, and runs the tool loop that turns mid-stream
// tool invocations into executed tool results and continued generation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sauruslabs/osseus/internal/backend"
	"github.com/sauruslabs/osseus/internal/capability"
	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/pkg/log"
)

const (
	defaultMaxToolIterations = 15
	defaultContextLength     = 8192

	// rejectedMarker prefixes the tool-result turn recorded when a tool
	// fails or is denied. Visible to the model and the user.
	rejectedMarker = "[REJECTED]"
)

// ErrToolLoopExceeded terminates a request whose tool loop hit the
// iteration cap. Distinct from routing failure.
var ErrToolLoopExceeded = errors.New("tool loop iteration cap exceeded")

// Options configures an Engine. Router is required; everything else is
// optional.
type Options struct {
	Router   *backend.Router
	Executor core.ToolExecutor    // nil: tool calls surface to the caller
	Selector *capability.Selector // nil: capability disclosure disabled
	Budgeter *Budgeter

	SystemPrompt      string
	ContextLength     int
	MaxToolIterations int
	Overrides         map[string]bool // per-scope tool enable/disable

	// OnTurn is invoked for every assistant and tool turn the engine
	// produces, in order, for history recording. Called on the engine's
	// goroutine; must not block for long.
	OnTurn func(core.Message)
}

// Engine holds no per-request mutable state; one Engine may serve
// concurrent requests. Each StreamChat call runs on its own goroutine and
// owns its message list.
type Engine struct {
	router    *backend.Router
	executor  core.ToolExecutor
	selector  *capability.Selector
	budgeter  *Budgeter
	system    string
	ctxLen    int
	maxIters  int
	overrides map[string]bool
	onTurn    func(core.Message)
}

func New(opts Options) *Engine {
	budgeter := opts.Budgeter
	if budgeter == nil {
		budgeter = NewBudgeter(nil)
	}
	ctxLen := opts.ContextLength
	if ctxLen <= 0 {
		ctxLen = defaultContextLength
	}
	maxIters := opts.MaxToolIterations
	if maxIters <= 0 {
		maxIters = defaultMaxToolIterations
	}
	return &Engine{
		router:    opts.Router,
		executor:  opts.Executor,
		selector:  opts.Selector,
		budgeter:  budgeter,
		system:    opts.SystemPrompt,
		ctxLen:    ctxLen,
		maxIters:  maxIters,
		overrides: opts.Overrides,
		onTurn:    opts.OnTurn,
	}
}

// StreamChat routes the request and streams deltas. Tool invocations are
// consumed by the engine's tool loop when an executor is wired; otherwise
// they are forwarded to the caller as chunks and the stream ends.
func (e *Engine) StreamChat(ctx context.Context, req core.Request) (<-chan core.Chunk, error) {
	b, model, err := e.router.Resolve(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Chunk)
	go func() {
		defer close(out)
		e.runStream(ctx, b, model, req, out)
	}()
	return out, nil
}

func (e *Engine) runStream(ctx context.Context, b backend.Backend, model string, req core.Request, out chan<- core.Chunk) {
	logger := log.FromCtx(ctx)

	emit := func(c core.Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	messages := append([]core.Message(nil), req.Messages...)

	for iter := 0; iter < e.maxIters; iter++ {
		outbound := e.buildRequest(req, model, messages)
		ch, err := e.openStream(ctx, b, outbound)
		if err != nil {
			emit(core.Chunk{Err: err})
			return
		}

		var text strings.Builder
		var inv *core.ToolInvocation
	drain:
		for {
			select {
			case <-ctx.Done():
				e.record(core.Message{Role: core.RoleAssistant, Content: text.String()})
				return
			case c, ok := <-ch:
				if !ok {
					break drain
				}
				if c.Err != nil {
					emit(core.Chunk{Err: c.Err})
					return
				}
				if c.Invocation != nil {
					// No parallel tool calls in one turn; the first
					// invocation wins and the rest of the stream drains.
					if inv == nil {
						inv = c.Invocation
					}
					continue
				}
				if c.Text != "" {
					text.WriteString(c.Text)
					if !emit(core.Chunk{Text: c.Text}) {
						return
					}
				}
			}
		}

		if inv == nil {
			if text.Len() > 0 {
				e.record(core.Message{Role: core.RoleAssistant, Content: text.String()})
			}
			return
		}

		call := e.assignCall(inv)
		assistant := core.Message{
			Role:      core.RoleAssistant,
			Content:   text.String(),
			ToolCalls: []core.ToolCall{call},
		}
		messages = append(messages, assistant)
		e.record(assistant)

		if !e.executable(inv.Name) {
			// The caller owns this tool; hand the decision back.
			inv.CallID = call.ID
			emit(core.Chunk{Invocation: inv})
			return
		}

		result, rejected := e.executeTool(ctx, inv)
		toolMsg := core.Message{
			Role:       core.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
		}
		messages = append(messages, toolMsg)
		e.record(toolMsg)

		if rejected {
			// Fatal to the current tool chain only; the conversation
			// stays valid and continuable.
			logger.Warn().Str("tool", inv.Name).Msg("tool rejected, ending tool chain")
			return
		}
	}

	emit(core.Chunk{Err: fmt.Errorf("%w after %d iterations", ErrToolLoopExceeded, e.maxIters)})
}

// CompleteChat routes the request and runs generation to completion,
// executing tools along the way. When no executor is wired and the model
// calls a tool, the completion carries the call with finish reason
// "tool_calls" for the caller to execute.
func (e *Engine) CompleteChat(ctx context.Context, req core.Request) (*core.Completion, error) {
	b, model, err := e.router.Resolve(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	messages := append([]core.Message(nil), req.Messages...)

	for iter := 0; iter < e.maxIters; iter++ {
		outbound := e.buildRequest(req, model, messages)

		text, inv, err := e.generate(ctx, b, outbound)
		if err != nil {
			return nil, err
		}

		if inv == nil {
			msg := core.Message{Role: core.RoleAssistant, Content: text}
			e.record(msg)
			return e.completion(model, outbound.Messages, msg, core.FinishStop), nil
		}

		call := e.assignCall(inv)
		assistant := core.Message{
			Role:      core.RoleAssistant,
			Content:   text,
			ToolCalls: []core.ToolCall{call},
		}
		messages = append(messages, assistant)
		e.record(assistant)

		if !e.executable(inv.Name) {
			return e.completion(model, outbound.Messages, assistant, core.FinishToolCalls), nil
		}

		result, rejected := e.executeTool(ctx, inv)
		toolMsg := core.Message{
			Role:       core.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
		}
		messages = append(messages, toolMsg)
		e.record(toolMsg)

		if rejected {
			msg := core.Message{Role: core.RoleAssistant, Content: text}
			return e.completion(model, outbound.Messages, msg, core.FinishStop), nil
		}
	}

	return nil, fmt.Errorf("%w after %d iterations", ErrToolLoopExceeded, e.maxIters)
}

// openStream picks the streaming entry point for the backend's
// capabilities. Tool-capable backends get the toolset; everything else
// streams plain text.
func (e *Engine) openStream(ctx context.Context, b backend.Backend, req core.Request) (<-chan core.Chunk, error) {
	if tc, ok := b.(backend.ToolCapable); ok && len(req.Tools) > 0 {
		return tc.StreamTools(ctx, req)
	}
	req.Tools = nil
	return b.Stream(ctx, req)
}

func (e *Engine) generate(ctx context.Context, b backend.Backend, req core.Request) (string, *core.ToolInvocation, error) {
	if tc, ok := b.(backend.ToolCapable); ok && len(req.Tools) > 0 {
		return tc.GenerateTools(ctx, req)
	}
	req.Tools = nil
	text, err := b.Generate(ctx, req)
	return text, nil, err
}

// buildRequest assembles the outbound request: decorated system prompt
// first, invalid assistant turns dropped, history pruned to the context
// budget, and the phase-appropriate toolset attached.
func (e *Engine) buildRequest(req core.Request, model string, messages []core.Message) core.Request {
	msgs := e.shapeMessages(messages)
	msgs = e.budgeter.Prune(msgs, e.ctxLen, req.MaxTokens)

	return core.Request{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		Tools:       e.toolset(req),
		ToolChoice:  req.ToolChoice,
	}
}

// shapeMessages enforces the outbound ordering rules: the system prompt is
// always first, and assistant turns with neither content nor tool calls
// never reach a backend. The trailing empty assistant placeholder falls
// under the same rule.
func (e *Engine) shapeMessages(messages []core.Message) []core.Message {
	var systemParts []string
	if e.system != "" {
		systemParts = append(systemParts, e.system)
	}

	rest := make([]core.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == core.RoleSystem {
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
			continue
		}
		if m.Role == core.RoleAssistant && !m.Valid() {
			continue
		}
		rest = append(rest, m)
	}

	system := strings.Join(systemParts, "\n\n")
	if e.selector != nil {
		system = e.selector.SystemPrompt(system)
	}

	if system == "" {
		return rest
	}
	out := make([]core.Message, 0, len(rest)+1)
	out = append(out, core.Message{Role: core.RoleSystem, Content: system})
	return append(out, rest...)
}

func (e *Engine) toolset(req core.Request) []core.Tool {
	if req.ToolChoice.Mode == core.ToolChoiceNone {
		return nil
	}

	tools := append([]core.Tool(nil), req.Tools...)
	if e.selector != nil {
		tools = append(tools, e.selector.Toolset()...)
	}
	return tools
}

// assignCall reuses the backend-preserved call id when present, otherwise
// synthesizes one. The id is stable for the lifetime of the call.
func (e *Engine) assignCall(inv *core.ToolInvocation) core.ToolCall {
	id := inv.CallID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	return core.ToolCall{
		ID:   id,
		Type: "function",
		Function: core.FunctionCall{
			Name:      inv.Name,
			Arguments: inv.Arguments,
		},
	}
}

// executable reports whether the engine can run the tool itself: the
// capability meta-tool always, anything else only through the executor.
func (e *Engine) executable(name string) bool {
	if e.selector != nil && name == capability.MetaToolName {
		return true
	}
	return e.executor != nil
}

// executeTool runs one tool call. Failures become a rejection marker in
// the result text; rejected reports that the current tool chain must end.
func (e *Engine) executeTool(ctx context.Context, inv *core.ToolInvocation) (result string, rejected bool) {
	if e.selector != nil && inv.Name == capability.MetaToolName {
		return e.selector.Select(ctx, inv.Arguments), false
	}

	out, err := e.executor.Execute(ctx, inv.Name, inv.Arguments, e.overrides)
	if err != nil {
		return fmt.Sprintf("%s %v", rejectedMarker, err), true
	}
	return out, false
}

func (e *Engine) record(msg core.Message) {
	if e.onTurn != nil {
		e.onTurn(msg)
	}
}

func (e *Engine) completion(model string, prompt []core.Message, msg core.Message, finish string) *core.Completion {
	promptTokens := 0
	for _, m := range prompt {
		promptTokens += e.budgeter.MessageTokens(m)
	}
	completionTokens := e.budgeter.MessageTokens(msg)

	return &core.Completion{
		ID:    "chatcmpl-" + uuid.NewString(),
		Model: model,
		Choices: []core.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: finish,
		}},
		Usage: core.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}
