// Package skills discovers instruction bundles on disk. A skill is a
// directory containing a SKILL.md file: YAML frontmatter with name and
// description, then a markdown body of instructions that is injected into
// the system prompt only once the model selects the skill.
package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sauruslabs/osseus/internal/capability"
	"gopkg.in/yaml.v3"
)

const skillFile = "SKILL.md"

// namePattern: lowercase letters, digits and hyphens, no leading or
// trailing hyphen.
var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Skill is one discovered instruction bundle.
type Skill struct {
	Name        string
	Description string
	Path        string // directory holding SKILL.md

	mu   sync.Mutex
	body string // loaded lazily
}

// Instructions returns the markdown body, reading it on first use. The
// catalog stays cheap for skills the model never activates.
func (s *Skill) Instructions() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body != "" {
		return s.body, nil
	}
	raw, err := os.ReadFile(filepath.Join(s.Path, skillFile))
	if err != nil {
		return "", fmt.Errorf("read skill %s: %w", s.Name, err)
	}
	_, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse skill %s: %w", s.Name, err)
	}
	s.body = strings.TrimSpace(body)
	return s.body, nil
}

// Registry holds skills discovered from one or more directories. Earlier
// directories win on name collisions.
type Registry struct {
	skills map[string]*Skill
	order  []string
}

// Discover scans each directory for immediate subdirectories containing a
// SKILL.md. Malformed skills are skipped, not fatal; a missing directory
// is silently ignored.
func Discover(dirs ...string) (*Registry, error) {
	r := &Registry{skills: make(map[string]*Skill)}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("scan skills dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			skill, err := load(path)
			if err != nil {
				continue
			}
			if _, dup := r.skills[skill.Name]; dup {
				continue
			}
			r.skills[skill.Name] = skill
			r.order = append(r.order, skill.Name)
		}
	}
	sort.Strings(r.order)
	return r, nil
}

func load(dir string) (*Skill, error) {
	raw, err := os.ReadFile(filepath.Join(dir, skillFile))
	if err != nil {
		return nil, err
	}
	front, _, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return nil, fmt.Errorf("frontmatter: %w", err)
	}
	if fm.Name == "" || !namePattern.MatchString(fm.Name) {
		return nil, fmt.Errorf("invalid skill name %q", fm.Name)
	}
	if fm.Description == "" {
		return nil, fmt.Errorf("skill %s: description is required", fm.Name)
	}

	return &Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Path:        dir,
	}, nil
}

// splitFrontmatter splits "---\n<yaml>\n---\n<body>".
func splitFrontmatter(content string) (front, body string, err error) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return "", "", fmt.Errorf("missing frontmatter delimiter")
	}
	front, body, ok = strings.Cut(rest, "\n---")
	if !ok {
		return "", "", fmt.Errorf("unterminated frontmatter")
	}
	body = strings.TrimPrefix(body, "\n")
	return front, body, nil
}

// List returns catalog entries for every discovered skill, sorted by name.
func (r *Registry) List() []capability.SkillInfo {
	out := make([]capability.SkillInfo, 0, len(r.order))
	for _, name := range r.order {
		s := r.skills[name]
		out = append(out, capability.SkillInfo{Name: s.Name, Description: s.Description})
	}
	return out
}

// LoadInstructions implements core.SkillLoader. Unknown names are an
// error; the selector validates names before calling here.
func (r *Registry) LoadInstructions(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		skill, ok := r.skills[name]
		if !ok {
			return nil, fmt.Errorf("unknown skill %q", name)
		}
		body, err := skill.Instructions()
		if err != nil {
			return nil, err
		}
		out[name] = body
	}
	return out, nil
}
