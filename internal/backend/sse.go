package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/pkg/log"
)

// wire shapes for the chat completions endpoint
type wireToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string              `json:"content"`
			ToolCalls []wireToolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// streamCompletions issues a streaming chat completions request and turns
// the SSE response into a channel of chunks. Tool call fragments are
// assembled across deltas and emitted as a single ToolInvocation once the
// provider reports the tool_calls finish reason.
func streamCompletions(ctx context.Context, b *baseClient, path string, payload map[string]any, headers map[string]string) (<-chan core.Chunk, error) {
	payload["stream"] = true

	resp, err := b.doRequest(ctx, http.MethodPost, path, payload, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	out := make(chan core.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		emit := func(c core.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// partial tool calls keyed by stream index
		type partialCall struct {
			id   string
			name string
			args strings.Builder
		}
		calls := make(map[int]*partialCall)
		order := make([]int, 0, 2)
		toolsRequested := false

		flushCalls := func() bool {
			for _, idx := range order {
				pc := calls[idx]
				inv := &core.ToolInvocation{
					Name:      pc.name,
					Arguments: pc.args.String(),
					CallID:    pc.id,
				}
				if inv.Arguments == "" {
					inv.Arguments = "{}"
				}
				if !emit(core.Chunk{Invocation: inv}) {
					return false
				}
			}
			calls = make(map[int]*partialCall)
			order = order[:0]
			return true
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				break
			}

			var chunk wireStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				log.FromCtx(ctx).Debug().Err(err).Msg("skipping malformed stream chunk")
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				if !emit(core.Chunk{Text: choice.Delta.Content}) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				pc, ok := calls[tc.Index]
				if !ok {
					pc = &partialCall{}
					calls[tc.Index] = pc
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				pc.args.WriteString(tc.Function.Arguments)
			}

			if choice.FinishReason == core.FinishToolCalls {
				toolsRequested = true
			}
		}

		if err := scanner.Err(); err != nil {
			emit(core.Chunk{Err: fmt.Errorf("read stream: %w", err)})
			return
		}

		// Some providers omit the finish_reason and just close the stream
		// after the last tool call fragment.
		if toolsRequested || len(order) > 0 {
			flushCalls()
		}
	}()

	return out, nil
}
