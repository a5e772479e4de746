package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const readFileSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The path to the file to read" }
  },
  "required": ["path"]
}
`

const listDirSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The directory path to list" }
  },
  "required": ["path"]
}
`

const fileInfoSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The path to the file or directory to inspect" }
  },
  "required": ["path"]
}
`

// Filesystem exposes read-only file tools rooted at a base path. Paths
// that escape the root are rejected.
type Filesystem struct {
	BasePath string
}

func NewFilesystem(basePath string) *Filesystem {
	if basePath == "" {
		basePath, _ = os.Getwd()
	}
	abs, err := filepath.Abs(basePath)
	if err == nil {
		basePath = abs
	}
	return &Filesystem{BasePath: basePath}
}

func (fs *Filesystem) resolvePath(p string) (string, error) {
	resolved := p
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(fs.BasePath, resolved)
	}
	resolved = filepath.Clean(resolved)
	if resolved != fs.BasePath && !strings.HasPrefix(resolved, fs.BasePath+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", p)
	}
	return resolved, nil
}

func (fs *Filesystem) ReadFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := fs.resolvePath(input.Path)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

func (fs *Filesystem) ListDir(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := fs.resolvePath(input.Path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}

	var result strings.Builder
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		prefix := "[FILE]"
		if entry.IsDir() {
			prefix = "[DIR] "
		}
		fmt.Fprintf(&result, "%s %s (%d bytes)\n", prefix, entry.Name(), info.Size())
	}
	return result.String(), nil
}

func (fs *Filesystem) FileInfo(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := fs.resolvePath(input.Path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}

	return fmt.Sprintf(
		"Path: %s\nSize: %d bytes\nIsDir: %t\nMode: %s\nModTime: %s\n",
		input.Path,
		info.Size(),
		info.IsDir(),
		info.Mode(),
		info.ModTime().Format(time.RFC3339),
	), nil
}

func (fs *Filesystem) Definitions() map[string]Definition {
	return map[string]Definition{
		"read_file":      {"Read a file from the local filesystem", readFileSchema, fs.ReadFile},
		"list_directory": {"List contents of a directory", listDirSchema, fs.ListDir},
		"get_file_info":  {"Get metadata about a file (size, mode, modtime)", fileInfoSchema, fs.FileInfo},
	}
}
