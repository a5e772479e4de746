package core

import "context"

// ToolExecutor runs a tool on behalf of the engine. Any failure is treated
// by the engine as a rejection of the current tool chain, never a crash.
type ToolExecutor interface {
	ListTools(ctx context.Context) ([]Tool, error)
	Execute(ctx context.Context, name string, args string, overrides map[string]bool) (string, error)
}

// SkillLoader resolves skill names to their full instruction text.
type SkillLoader interface {
	LoadInstructions(ctx context.Context, names []string) (map[string]string, error)
}
