// Package capability implements the two-phase capability-disclosure
// protocol. Exposing every enabled tool and skill schema on every turn is
// token-expensive, so the first phase offers only a compact catalog plus a
// single meta-tool; full schemas and skill instructions are disclosed once
// the model selects what it needs.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/pkg/log"
)

// MetaToolName is the single tool offered before selection.
const MetaToolName = "select_capabilities"

const metaToolSchema = `
{
  "type": "object",
  "properties": {
    "tools": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Names of tools to activate, from the capability catalog"
    },
    "skills": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Names of skills to activate, from the capability catalog"
    }
  }
}
`

// SkillInfo is the catalog entry for a skill: an instruction bundle with no
// callable surface, disjoint from tools.
type SkillInfo struct {
	Name        string
	Description string
}

// Selector tracks which capabilities the model has chosen for the current
// conversation. Selection state persists until Reset.
type Selector struct {
	mu             sync.Mutex
	enabledTools   []core.Tool
	enabledSkills  []SkillInfo
	loader         core.SkillLoader
	overrides      map[string]bool
	selectedTools  []string
	selectedSkills []string
	instructions   map[string]string
	selected       bool
}

func NewSelector(tools []core.Tool, skills []SkillInfo, loader core.SkillLoader, overrides map[string]bool) *Selector {
	return &Selector{
		enabledTools:  tools,
		enabledSkills: skills,
		loader:        loader,
		overrides:     overrides,
		instructions:  make(map[string]string),
	}
}

// MetaTool returns the select_capabilities tool spec.
func MetaTool() core.Tool {
	return core.Tool{
		Type: "function",
		Function: core.Function{
			Name:        MetaToolName,
			Description: "Activate tools and skills from the capability catalog. Activated capabilities stay available for the rest of the conversation; you can call this again later to add more.",
			Parameters:  json.RawMessage(metaToolSchema),
		},
	}
}

// Selected reports whether the model has made at least one selection.
func (s *Selector) Selected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Reset clears all selection state. Called when the conversation resets.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = false
	s.selectedTools = nil
	s.selectedSkills = nil
	s.instructions = make(map[string]string)
}

// Toolset returns the tools to offer the backend for the current phase:
// only the meta-tool before selection, the validated selection plus the
// meta-tool after.
func (s *Selector) Toolset() []core.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return []core.Tool{MetaTool()}
	}

	tools := make([]core.Tool, 0, len(s.selectedTools)+1)
	for _, name := range s.selectedTools {
		if t, ok := s.findTool(name); ok {
			tools = append(tools, t)
		}
	}
	return append(tools, MetaTool())
}

// SystemPrompt decorates the base system prompt for the current phase.
// Phase one carries the compact catalog; phase two carries the active
// skill instructions plus a reminder that more capabilities exist.
func (s *Selector) SystemPrompt(base string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	if base != "" {
		sb.WriteString(base)
		sb.WriteString("\n\n")
	}

	if !s.selected {
		sb.WriteString("CAPABILITY CATALOG:\n")
		sb.WriteString("The following capabilities are available but not yet active. ")
		sb.WriteString("Call select_capabilities with the names you need before using them.\n")
		s.writeCatalog(&sb, nil, nil)
		return sb.String()
	}

	for _, name := range s.selectedSkills {
		if text := s.instructions[name]; text != "" {
			sb.WriteString(fmt.Sprintf("SKILL (%s):\n%s\n\n", name, text))
		}
	}

	remainingTools, remainingSkills := s.remaining()
	if len(remainingTools) > 0 || len(remainingSkills) > 0 {
		sb.WriteString("ADDITIONAL CAPABILITIES AVAILABLE (activate via select_capabilities):\n")
		s.writeCatalog(&sb, remainingTools, remainingSkills)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// writeCatalog lists names with one-line descriptions. With nil filters the
// whole enabled set is listed. Caller holds the lock.
func (s *Selector) writeCatalog(sb *strings.Builder, toolFilter, skillFilter map[string]bool) {
	for _, t := range s.enabledTools {
		name := t.Function.Name
		if !s.enabled(name) {
			continue
		}
		if toolFilter != nil && !toolFilter[name] {
			continue
		}
		sb.WriteString(fmt.Sprintf("- tool %s: %s\n", name, firstLine(t.Function.Description)))
	}
	for _, sk := range s.enabledSkills {
		if !s.enabled(sk.Name) {
			continue
		}
		if skillFilter != nil && !skillFilter[sk.Name] {
			continue
		}
		sb.WriteString(fmt.Sprintf("- skill %s: %s\n", sk.Name, firstLine(sk.Description)))
	}
}

// remaining returns enabled-but-unselected capability names. Caller holds
// the lock.
func (s *Selector) remaining() (map[string]bool, map[string]bool) {
	chosenTools := make(map[string]bool, len(s.selectedTools))
	for _, n := range s.selectedTools {
		chosenTools[n] = true
	}
	chosenSkills := make(map[string]bool, len(s.selectedSkills))
	for _, n := range s.selectedSkills {
		chosenSkills[n] = true
	}

	tools := make(map[string]bool)
	for _, t := range s.enabledTools {
		if name := t.Function.Name; s.enabled(name) && !chosenTools[name] {
			tools[name] = true
		}
	}
	skills := make(map[string]bool)
	for _, sk := range s.enabledSkills {
		if s.enabled(sk.Name) && !chosenSkills[sk.Name] {
			skills[sk.Name] = true
		}
	}
	return tools, skills
}

type selectArgs struct {
	Tools  []string `json:"tools"`
	Skills []string `json:"skills"`
}

// Select processes a select_capabilities call. Unknown or disabled names
// become warnings in the result text; partial success is expected and must
// not abort the turn, so Select never fails.
func (s *Selector) Select(ctx context.Context, argsJSON string) string {
	var args selectArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("malformed capability selection")
		return fmt.Sprintf("No capabilities activated: could not parse selection (%v). Pass {\"tools\": [...], \"skills\": [...]}.", err)
	}

	s.mu.Lock()

	var activatedTools, activatedSkills, warnings []string

	for _, name := range args.Tools {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := s.findTool(name); !ok || !s.enabled(name) {
			warnings = append(warnings, fmt.Sprintf("unknown or disabled tool %q", name))
			continue
		}
		if !contains(s.selectedTools, name) {
			s.selectedTools = append(s.selectedTools, name)
		}
		activatedTools = append(activatedTools, name)
	}

	var newSkills []string
	for _, name := range args.Skills {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !s.findSkill(name) || !s.enabled(name) {
			warnings = append(warnings, fmt.Sprintf("unknown or disabled skill %q", name))
			continue
		}
		if !contains(s.selectedSkills, name) {
			s.selectedSkills = append(s.selectedSkills, name)
			newSkills = append(newSkills, name)
		}
		activatedSkills = append(activatedSkills, name)
	}

	if len(activatedTools) > 0 || len(activatedSkills) > 0 {
		s.selected = true
	}
	loader := s.loader
	s.mu.Unlock()

	if loader != nil && len(newSkills) > 0 {
		instructions, err := loader.LoadInstructions(ctx, newSkills)
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("failed to load skill instructions")
			warnings = append(warnings, fmt.Sprintf("skill instructions unavailable: %v", err))
		} else {
			s.mu.Lock()
			for name, text := range instructions {
				s.instructions[name] = text
			}
			s.mu.Unlock()
		}
	}

	var sb strings.Builder
	if len(activatedTools) > 0 {
		sb.WriteString("Activated tools: " + strings.Join(activatedTools, ", ") + ". ")
	}
	if len(activatedSkills) > 0 {
		sb.WriteString("Activated skills: " + strings.Join(activatedSkills, ", ") + ". ")
	}
	if len(activatedTools) == 0 && len(activatedSkills) == 0 {
		sb.WriteString("No capabilities activated. ")
	}
	for _, w := range warnings {
		sb.WriteString("Warning: " + w + ". ")
	}
	return strings.TrimSpace(sb.String())
}

// SelectedToolNames returns the validated selected tool names in selection
// order.
func (s *Selector) SelectedToolNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.selectedTools))
	copy(out, s.selectedTools)
	return out
}

// SelectedSkillNames returns the validated selected skill names in
// selection order.
func (s *Selector) SelectedSkillNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.selectedSkills))
	copy(out, s.selectedSkills)
	return out
}

// enabled honors per-scope overrides: a name explicitly mapped to false is
// disabled even if present in the enabled set. Caller holds the lock.
func (s *Selector) enabled(name string) bool {
	if v, ok := s.overrides[name]; ok {
		return v
	}
	return true
}

func (s *Selector) findTool(name string) (core.Tool, bool) {
	for _, t := range s.enabledTools {
		if t.Function.Name == name {
			return t, true
		}
	}
	return core.Tool{}, false
}

func (s *Selector) findSkill(name string) bool {
	for _, sk := range s.enabledSkills {
		if sk.Name == name {
			return true
		}
	}
	return false
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
