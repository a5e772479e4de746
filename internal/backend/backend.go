package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sauruslabs/osseus/internal/core"
)

var (
	// ErrNoRoute means no backend can serve the requested model. Fatal to
	// the request, never retried.
	ErrNoRoute = errors.New("no backend can serve the requested model")

	// ErrUnknownModel means a backend was asked to generate for a model it
	// does not recognize.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnavailable means the backend cannot serve anything right now
	// (endpoint down, model not installed). The router skips such backends
	// silently.
	ErrUnavailable = errors.New("backend unavailable")
)

// Backend is a capability-polymorphic generation provider.
type Backend interface {
	Name() string

	// Available reports whether this backend can serve requests at all.
	Available(ctx context.Context) bool

	// Handles reports whether this backend recognizes the model name.
	// The empty string asks whether the backend can serve the default
	// model.
	Handles(model string) bool

	// Stream generates token deltas for the request. The returned channel
	// is closed when generation finishes; a Chunk with Err set terminates
	// the stream.
	Stream(ctx context.Context, req core.Request) (<-chan core.Chunk, error)

	// Generate runs one-shot generation and returns the full text.
	Generate(ctx context.Context, req core.Request) (string, error)
}

// ToolCapable is the optional extended surface for backends that support
// function calling. Callers must discover it via type assertion, never
// assume it.
type ToolCapable interface {
	// StreamTools behaves like Stream but may emit a Chunk carrying a
	// ToolInvocation when the model decides to call a tool.
	StreamTools(ctx context.Context, req core.Request) (<-chan core.Chunk, error)

	// GenerateTools runs one-shot generation; when the model calls a tool
	// the invocation is returned instead of text.
	GenerateTools(ctx context.Context, req core.Request) (string, *core.ToolInvocation, error)
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	Models(ctx context.Context) ([]core.Model, error)
}

type baseClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func newBaseClient(baseURL, apiKey string) baseClient {
	return baseClient{
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (b *baseClient) doRequest(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", core.AppUserAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return resp, nil
}
