package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/pkg/log"
)

const (
	// defaultCatalogTTL bounds how stale the installed-model catalog may
	// get before the endpoint is re-scanned.
	defaultCatalogTTL = 30 * time.Second

	// defaultGateLimit serializes generation calls into one loaded model
	// container. Incremental decode state is not reentrant.
	defaultGateLimit = 1

	localContextLength = 32768
)

// Local serves models loaded by a local llama-server/Ollama-style endpoint.
// It recognizes exactly the models the endpoint reports as installed, with
// TTL-bounded catalog freshness, and gates concurrent generation per model.
// It does not support function calling.
type Local struct {
	baseClient
	name       string
	catalogTTL time.Duration
	gateLimit  int

	mu        sync.Mutex
	installed map[string]bool
	scannedAt time.Time
	reachable bool
	gates     map[string]chan struct{}
}

type LocalConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	CatalogTTL time.Duration
	GateLimit  int
}

func NewLocal(cfg LocalConfig) *Local {
	ttl := cfg.CatalogTTL
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	limit := cfg.GateLimit
	if limit <= 0 {
		limit = defaultGateLimit
	}
	return &Local{
		baseClient: newBaseClient(cfg.BaseURL, cfg.APIKey),
		name:       cfg.Name,
		catalogTTL: ttl,
		gateLimit:  limit,
		installed:  make(map[string]bool),
		gates:      make(map[string]chan struct{}),
	}
}

func (l *Local) Name() string { return l.name }

func (l *Local) Available(ctx context.Context) bool {
	l.refreshCatalog(ctx, false)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reachable && len(l.installed) > 0
}

func (l *Local) Handles(model string) bool {
	if model == "" {
		// Local weights are never the implicit default; a request for
		// "default" must not silently resolve to a heavy local model.
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.installed[model] {
		return true
	}
	// "llama3:8b" also answers for "llama3"
	for name := range l.installed {
		if base, _, ok := strings.Cut(name, ":"); ok && base == model {
			return true
		}
	}
	return false
}

// InvalidateCatalog forces a re-scan on the next availability check.
func (l *Local) InvalidateCatalog() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scannedAt = time.Time{}
}

// refreshCatalog re-scans the endpoint's installed models when the cached
// catalog is older than the TTL.
func (l *Local) refreshCatalog(ctx context.Context, force bool) {
	l.mu.Lock()
	fresh := !force && time.Since(l.scannedAt) < l.catalogTTL
	l.mu.Unlock()
	if fresh {
		return
	}

	installed, err := l.scanModels(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.scannedAt = time.Now()
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Str("backend", l.name).Msg("model scan failed")
		l.reachable = false
		l.installed = make(map[string]bool)
		return
	}
	l.reachable = true
	l.installed = installed
}

func (l *Local) scanModels(ctx context.Context) (map[string]bool, error) {
	scanCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(scanCtx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	installed := make(map[string]bool, len(result.Models))
	for _, m := range result.Models {
		installed[m.Name] = true
	}
	return installed, nil
}

// gate returns the per-model semaphore, creating it on first use.
func (l *Local) gate(model string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gates[model]
	if !ok {
		g = make(chan struct{}, l.gateLimit)
		l.gates[model] = g
	}
	return g
}

func (l *Local) acquire(ctx context.Context, model string) (release func(), err error) {
	g := l.gate(model)
	select {
	case g <- struct{}{}:
		return func() { <-g }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Local) resolveModel(ctx context.Context, model string) (string, error) {
	l.refreshCatalog(ctx, false)
	if !l.Handles(model) {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.installed[model] {
		return model, nil
	}
	for name := range l.installed {
		if base, _, ok := strings.Cut(name, ":"); ok && base == model {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownModel, model)
}

func (l *Local) Stream(ctx context.Context, req core.Request) (<-chan core.Chunk, error) {
	model, err := l.resolveModel(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	release, err := l.acquire(ctx, model)
	if err != nil {
		return nil, err
	}

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

	inner, err := streamCompletions(ctx, &l.baseClient, "/v1/chat/completions", payload, l.headers())
	if err != nil {
		release()
		return nil, err
	}

	// Hold the gate until the stream drains so one decode runs per loaded
	// model container at a time.
	out := make(chan core.Chunk)
	go func() {
		defer close(out)
		defer release()
		for c := range inner {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (l *Local) Generate(ctx context.Context, req core.Request) (string, error) {
	model, err := l.resolveModel(ctx, req.Model)
	if err != nil {
		return "", err
	}

	release, err := l.acquire(ctx, model)
	if err != nil {
		return "", err
	}
	defer release()

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

	resp, err := l.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, l.headers())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	msg, err := parseCompletionResponse(resp)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (l *Local) headers() map[string]string {
	headers := make(map[string]string)
	if l.apiKey != "" {
		headers["Authorization"] = "Bearer " + l.apiKey
	}
	return headers
}

func (l *Local) Models(ctx context.Context) ([]core.Model, error) {
	l.refreshCatalog(ctx, true)
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.reachable {
		return nil, ErrUnavailable
	}
	models := make([]core.Model, 0, len(l.installed))
	for name := range l.installed {
		models = append(models, core.Model{
			ID:            name,
			Name:          name,
			ContextLength: localContextLength,
		})
	}
	return models, nil
}
