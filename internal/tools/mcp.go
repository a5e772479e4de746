package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/pkg/log"
)

const (
	listToolsTimeout = 5 * time.Second
	callToolTimeout  = 2 * time.Minute
)

// ServerConfig is one entry in mcp_config.json.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

type bridgeConfig struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// Bridge connects to external MCP servers over stdio and exposes their
// tools to the executor.
type Bridge struct {
	mu           sync.RWMutex
	servers      map[string]ServerConfig
	clients      map[string]*client.Client
	toolToClient map[string]*client.Client

	cachedTools []core.Tool
	cacheValid  bool
}

// NewBridge loads server definitions from configPath. A missing file
// yields an empty bridge, not an error.
func NewBridge(configPath string) (*Bridge, error) {
	b := &Bridge{
		servers:      make(map[string]ServerConfig),
		clients:      make(map[string]*client.Client),
		toolToClient: make(map[string]*client.Client),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, fmt.Errorf("failed to read mcp config: %w", err)
	}

	var cfg bridgeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse mcp config: %w", err)
	}
	if cfg.MCPServers != nil {
		b.servers = cfg.MCPServers
	}
	return b, nil
}

// Start connects to every configured server.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cacheValid = false

	for name, srv := range b.servers {
		log.FromCtx(ctx).Info().Str("server", name).Msg("starting mcp connection")

		cli, err := connect(ctx, srv)
		if err != nil {
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		b.clients[name] = cli
	}
	return nil
}

func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for name, cli := range b.clients {
		if err := cli.Close(); err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("server", name).Msg("failed to close mcp client")
		}
	}
	return nil
}

func (b *Bridge) ListTools(ctx context.Context) ([]core.Tool, error) {
	b.mu.RLock()
	if b.cacheValid {
		tools := b.cachedTools
		b.mu.RUnlock()
		return tools, nil
	}
	snapshot := make(map[string]*client.Client, len(b.clients))
	for k, v := range b.clients {
		snapshot[k] = v
	}
	b.mu.RUnlock()

	type listResult struct {
		server string
		tools  []mcpproto.Tool
		err    error
	}
	results := make(chan listResult, len(snapshot))
	var wg sync.WaitGroup

	for name, cli := range snapshot {
		wg.Add(1)
		go func(n string, c *client.Client) {
			defer wg.Done()
			tCtx, cancel := context.WithTimeout(ctx, listToolsTimeout)
			defer cancel()

			resp, err := c.ListTools(tCtx, mcpproto.ListToolsRequest{})
			if err != nil {
				results <- listResult{server: n, err: err}
				return
			}
			results <- listResult{server: n, tools: resp.Tools}
		}(name, cli)
	}

	wg.Wait()
	close(results)

	var allTools []core.Tool
	newToolToClient := make(map[string]*client.Client)

	for res := range results {
		if res.err != nil {
			log.FromCtx(ctx).Error().Err(res.err).Str("server", res.server).Msg("failed to list tools")
			continue
		}
		for _, t := range res.tools {
			newToolToClient[t.Name] = snapshot[res.server]

			schemaBytes, _ := json.Marshal(t.InputSchema)
			allTools = append(allTools, core.Tool{
				Type: "function",
				Function: core.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  schemaBytes,
				},
			})
		}
	}

	b.mu.Lock()
	b.cachedTools = allTools
	b.toolToClient = newToolToClient
	b.cacheValid = true
	b.mu.Unlock()

	return allTools, nil
}

func (b *Bridge) CallTool(ctx context.Context, name, args string) (string, error) {
	b.mu.RLock()
	cli, ok := b.toolToClient[name]
	b.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	var argsMap map[string]interface{}
	if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
		return "", fmt.Errorf("invalid json arguments: %w", err)
	}

	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = argsMap

	tCtx, cancel := context.WithTimeout(ctx, callToolTimeout)
	defer cancel()

	res, err := cli.CallTool(tCtx, req)
	if err != nil {
		return "", err
	}
	if res.IsError {
		return "", fmt.Errorf("tool execution failed")
	}

	var output string
	for _, content := range res.Content {
		if text, ok := content.(mcpproto.TextContent); ok {
			output += text.Text + "\n"
		} else if textPtr, ok := content.(*mcpproto.TextContent); ok {
			output += textPtr.Text + "\n"
		}
	}
	return output, nil
}

func connect(ctx context.Context, srv ServerConfig) (*client.Client, error) {
	var env []string
	for k, v := range srv.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	cli, err := client.NewStdioMCPClient(srv.Command, env, srv.Args...)
	if err != nil {
		return nil, err
	}

	if err := cli.Start(ctx); err != nil {
		return nil, err
	}

	initReq := mcpproto.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpproto.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpproto.Implementation{
		Name:    core.AppName,
		Version: core.AppVersion,
	}
	initReq.Params.Capabilities = mcpproto.ClientCapabilities{}

	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, err
	}

	return cli, nil
}
