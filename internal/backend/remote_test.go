package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sauruslabs/osseus/internal/core"
)

func sseHandler(t *testing.T, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func newTestRemote(url string) *Remote {
	return NewRemote(RemoteConfig{
		Name:         "remote",
		BaseURL:      url,
		APIKey:       "test-key",
		DefaultModel: "test-model",
		IsDefault:    true,
	})
}

func TestRemoteStreamDeltas(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"choices":[{"delta":{"content":"a"}}]}`,
		`{"choices":[{"delta":{"content":"b"}}]}`,
		`{"choices":[{"delta":{"content":"c"},"finish_reason":"stop"}]}`,
	}))
	defer srv.Close()

	r := newTestRemote(srv.URL)
	ch, err := r.Stream(context.Background(), core.Request{
		Model:    "default",
		Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var got string
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		got += chunk.Text
	}
	if got != "abc" {
		t.Errorf("streamed text = %q, want %q", got, "abc")
	}
}

func TestRemoteStreamToolCallAssembly(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"choices":[{"delta":{"content":"Let me check."}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"fetch_url","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"url\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"https://x.test\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	}))
	defer srv.Close()

	r := newTestRemote(srv.URL)
	ch, err := r.StreamTools(context.Background(), core.Request{
		Model:    "test-model",
		Messages: []core.Message{{Role: core.RoleUser, Content: "fetch it"}},
		Tools:    []core.Tool{{Type: "function", Function: core.Function{Name: "fetch_url"}}},
	})
	if err != nil {
		t.Fatalf("StreamTools() error: %v", err)
	}

	var text string
	var inv *core.ToolInvocation
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		if chunk.Invocation != nil {
			inv = chunk.Invocation
			continue
		}
		text += chunk.Text
	}

	if text != "Let me check." {
		t.Errorf("text = %q", text)
	}
	if inv == nil {
		t.Fatal("expected a tool invocation")
	}
	if inv.Name != "fetch_url" {
		t.Errorf("invocation name = %q", inv.Name)
	}
	if inv.Arguments != `{"url":"https://x.test"}` {
		t.Errorf("invocation arguments = %q", inv.Arguments)
	}
	if inv.CallID != "call_abc" {
		t.Errorf("invocation call id = %q", inv.CallID)
	}
}

func TestRemoteStreamEmptyArgsBecomeObject(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"list_directory"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	}))
	defer srv.Close()

	r := newTestRemote(srv.URL)
	ch, err := r.StreamTools(context.Background(), core.Request{Model: "default"})
	if err != nil {
		t.Fatalf("StreamTools() error: %v", err)
	}

	var inv *core.ToolInvocation
	for chunk := range ch {
		if chunk.Invocation != nil {
			inv = chunk.Invocation
		}
	}
	if inv == nil {
		t.Fatal("expected a tool invocation")
	}
	if inv.Arguments != "{}" {
		t.Errorf("arguments = %q, want %q", inv.Arguments, "{}")
	}
}

func TestRemoteUnknownModel(t *testing.T) {
	r := newTestRemote("http://127.0.0.1:0")
	_, err := r.Stream(context.Background(), core.Request{Model: "nope"})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("Stream() error = %v, want ErrUnknownModel", err)
	}
}

func TestRemoteGenerateToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_9","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"a.txt\"}"}}]},"finish_reason":"tool_calls"}]}`)
	}))
	defer srv.Close()

	r := newTestRemote(srv.URL)
	text, inv, err := r.GenerateTools(context.Background(), core.Request{Model: "default"})
	if err != nil {
		t.Fatalf("GenerateTools() error: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
	if inv == nil || inv.Name != "read_file" || inv.CallID != "call_9" {
		t.Errorf("invocation = %+v", inv)
	}
}

func TestRemoteModelsGrowRecognizedSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"alpha"},{"id":"beta"}]}`)
	}))
	defer srv.Close()

	r := newTestRemote(srv.URL)
	if r.Handles("alpha") {
		t.Fatal("alpha recognized before listing")
	}

	models, err := r.Models(context.Background())
	if err != nil {
		t.Fatalf("Models() error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if !r.Handles("alpha") || !r.Handles("beta") {
		t.Error("listed models not folded into recognized set")
	}
}
