// Package tools implements the built-in tool executor: native Go tools
// registered by name plus an optional bridge to external MCP servers.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/pkg/log"
)

// Handler is the signature of a native tool implementation.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Toolset is anything that exposes a batch of named tools. The fetch and
// filesystem toolsets implement it.
type Toolset interface {
	Definitions() map[string]Definition
}

type Definition struct {
	Description string
	Schema      string
	Handler     Handler
}

// Executor implements core.ToolExecutor over native tools and, when
// attached, MCP-served tools. Native names win on collision.
type Executor struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	defs     []core.Tool
	bridge   *Bridge
}

func NewExecutor() *Executor {
	return &Executor{handlers: make(map[string]Handler)}
}

// Register adds one native tool. Duplicate names overwrite.
func (e *Executor) Register(name, description string, schema json.RawMessage, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.handlers[name]; exists {
		for i := range e.defs {
			if e.defs[i].Function.Name == name {
				e.defs = append(e.defs[:i], e.defs[i+1:]...)
				break
			}
		}
	}
	e.handlers[name] = handler
	e.defs = append(e.defs, core.Tool{
		Type: "function",
		Function: core.Function{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
	})
}

// RegisterSet registers every tool a toolset exposes.
func (e *Executor) RegisterSet(set Toolset) {
	names := make([]string, 0)
	defs := set.Definitions()
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic registration order
	for _, name := range names {
		def := defs[name]
		e.Register(name, def.Description, json.RawMessage(def.Schema), def.Handler)
	}
}

// AttachBridge wires an MCP bridge into the executor.
func (e *Executor) AttachBridge(b *Bridge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bridge = b
}

func (e *Executor) ListTools(ctx context.Context) ([]core.Tool, error) {
	e.mu.RLock()
	tools := append([]core.Tool(nil), e.defs...)
	bridge := e.bridge
	e.mu.RUnlock()

	if bridge == nil {
		return tools, nil
	}

	remote, err := bridge.ListTools(ctx)
	if err != nil {
		// A dead MCP server should not take the native tools down with it.
		log.FromCtx(ctx).Error().Err(err).Msg("mcp tool listing failed")
		return tools, nil
	}

	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		seen[t.Function.Name] = true
	}
	for _, t := range remote {
		if !seen[t.Function.Name] {
			tools = append(tools, t)
		}
	}
	return tools, nil
}

// Execute runs one tool by name. Overrides gate execution: an explicit
// false entry denies the tool even when it is registered.
func (e *Executor) Execute(ctx context.Context, name, args string, overrides map[string]bool) (string, error) {
	if enabled, ok := overrides[name]; ok && !enabled {
		return "", fmt.Errorf("tool %s is disabled", name)
	}

	log.FromCtx(ctx).Info().Str("tool", name).Msg("executing tool")

	e.mu.RLock()
	handler, native := e.handlers[name]
	bridge := e.bridge
	e.mu.RUnlock()

	if native {
		return handler(ctx, json.RawMessage(args))
	}
	if bridge != nil {
		return bridge.CallTool(ctx, name, args)
	}
	return "", fmt.Errorf("tool not found: %s", name)
}
