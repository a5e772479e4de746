package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sauruslabs/osseus/internal/core"
)

// Remote is an OpenAI-compatible HTTP backend. When configured as the
// default it also serves requests for the "default" model. It supports
// function calling.
type Remote struct {
	baseClient
	name         string
	defaultModel string
	isDefault    bool
	authHeader   string
	authPrefix   string
	extraHeaders map[string]string

	mu     sync.RWMutex
	models map[string]bool // extra recognized model names
}

type RemoteConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	DefaultModel string
	IsDefault    bool              // serve the "default" model name
	Models       []string          // additional recognized model names
	AuthHeader   string            // e.g. "Authorization"
	AuthPrefix   string            // e.g. "Bearer "
	ExtraHeaders map[string]string
}

func NewRemote(cfg RemoteConfig) *Remote {
	models := make(map[string]bool, len(cfg.Models))
	for _, m := range cfg.Models {
		models[strings.TrimSpace(m)] = true
	}
	if cfg.DefaultModel != "" {
		models[cfg.DefaultModel] = true
	}
	authHeader := cfg.AuthHeader
	if authHeader == "" {
		authHeader = "Authorization"
	}
	authPrefix := cfg.AuthPrefix
	if authPrefix == "" {
		authPrefix = "Bearer "
	}
	return &Remote{
		baseClient:   newBaseClient(cfg.BaseURL, cfg.APIKey),
		name:         cfg.Name,
		defaultModel: cfg.DefaultModel,
		isDefault:    cfg.IsDefault,
		authHeader:   authHeader,
		authPrefix:   authPrefix,
		extraHeaders: cfg.ExtraHeaders,
		models:       models,
	}
}

func (r *Remote) Name() string { return r.name }

func (r *Remote) Available(ctx context.Context) bool {
	return r.baseURL != ""
}

func (r *Remote) Handles(model string) bool {
	if model == "" {
		return r.isDefault && r.defaultModel != ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[model]
}

// effectiveModel maps the routing name onto the provider's wire name.
func (r *Remote) effectiveModel(model string) (string, error) {
	if model == "" || strings.EqualFold(model, core.DefaultModel) {
		if r.defaultModel == "" {
			return "", fmt.Errorf("%w: no default model configured", ErrUnknownModel)
		}
		return r.defaultModel, nil
	}
	if !r.Handles(model) {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return model, nil
}

func (r *Remote) headers() map[string]string {
	headers := make(map[string]string)
	if r.apiKey != "" {
		headers[r.authHeader] = r.authPrefix + r.apiKey
	}
	for k, v := range r.extraHeaders {
		headers[k] = v
	}
	return headers
}

func (r *Remote) payload(req core.Request, model string, withTools bool) map[string]any {
	payload := map[string]any{
		"model":    model,
		"messages": req.Messages,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if withTools && len(req.Tools) > 0 {
		payload["tools"] = req.Tools
		switch req.ToolChoice.Mode {
		case core.ToolChoiceNone:
			payload["tool_choice"] = "none"
		case core.ToolChoiceFunction:
			payload["tool_choice"] = map[string]any{
				"type":     "function",
				"function": map[string]any{"name": req.ToolChoice.Name},
			}
		}
	}
	return payload
}

func (r *Remote) Stream(ctx context.Context, req core.Request) (<-chan core.Chunk, error) {
	model, err := r.effectiveModel(req.Model)
	if err != nil {
		return nil, err
	}
	return streamCompletions(ctx, &r.baseClient, "/v1/chat/completions", r.payload(req, model, false), r.headers())
}

func (r *Remote) StreamTools(ctx context.Context, req core.Request) (<-chan core.Chunk, error) {
	model, err := r.effectiveModel(req.Model)
	if err != nil {
		return nil, err
	}
	return streamCompletions(ctx, &r.baseClient, "/v1/chat/completions", r.payload(req, model, true), r.headers())
}

func (r *Remote) Generate(ctx context.Context, req core.Request) (string, error) {
	text, _, err := r.complete(ctx, req, false)
	return text, err
}

func (r *Remote) GenerateTools(ctx context.Context, req core.Request) (string, *core.ToolInvocation, error) {
	return r.complete(ctx, req, true)
}

func (r *Remote) complete(ctx context.Context, req core.Request, withTools bool) (string, *core.ToolInvocation, error) {
	model, err := r.effectiveModel(req.Model)
	if err != nil {
		return "", nil, err
	}

	resp, err := r.doRequest(ctx, http.MethodPost, "/v1/chat/completions", r.payload(req, model, withTools), r.headers())
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	msg, err := parseCompletionResponse(resp)
	if err != nil {
		return "", nil, err
	}

	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		return msg.Content, &core.ToolInvocation{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
			CallID:    tc.ID,
		}, nil
	}
	return msg.Content, nil, nil
}

// Models lists the provider's models and folds them into the recognized
// set, so a routed request for a listed model succeeds.
func (r *Remote) Models(ctx context.Context) ([]core.Model, error) {
	resp, err := r.doRequest(ctx, http.MethodGet, "/v1/models", nil, r.headers())
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var apiResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]core.Model, 0, len(apiResp.Data))
	r.mu.Lock()
	for _, m := range apiResp.Data {
		r.models[m.ID] = true
		models = append(models, core.Model{ID: m.ID, Name: m.ID})
	}
	r.mu.Unlock()
	return models, nil
}

func parseCompletionResponse(resp *http.Response) (core.Message, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Message{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return core.Message{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message core.Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Message{}, fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return core.Message{}, fmt.Errorf("empty choices: %s", string(data))
	}
	return result.Choices[0].Message, nil
}
