package engine

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/sauruslabs/osseus/internal/core"
)

const (
	// defaultReserve is held back for the response when the request does
	// not set max tokens.
	defaultReserve = 4096

	// minBudget is the floor for the history budget regardless of how
	// small the model context is.
	minBudget = 2048
)

// Estimator approximates the token cost of a text payload.
type Estimator interface {
	Estimate(text string) int
}

// HeuristicEstimator costs one token per four characters, minimum one per
// payload. Cheap and close enough for budget enforcement.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// BPEEstimator counts real BPE tokens. Slower than the heuristic; use it
// when the budget is tight enough that overestimation hurts.
type BPEEstimator struct {
	enc *tiktoken.Tiktoken
}

func NewBPEEstimator() (*BPEEstimator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &BPEEstimator{enc: enc}, nil
}

func (b *BPEEstimator) Estimate(text string) int {
	n := len(b.enc.Encode(text, nil, nil))
	if n < 1 {
		return 1
	}
	return n
}

// Budgeter enforces a target context window by pruning conversation
// history. Pruning is request-scoped: callers keep the full stored record.
type Budgeter struct {
	est Estimator
}

func NewBudgeter(est Estimator) *Budgeter {
	if est == nil {
		est = HeuristicEstimator{}
	}
	return &Budgeter{est: est}
}

// MessageTokens estimates the token cost of one message: content,
// tool-call JSON and image payloads at their base64-expanded size.
func (b *Budgeter) MessageTokens(msg core.Message) int {
	total := 0
	if msg.Content != "" {
		total += b.est.Estimate(msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		total += b.est.Estimate(tc.Function.Name)
		total += b.est.Estimate(tc.Function.Arguments)
	}
	for _, img := range msg.Images {
		encoded := (len(img) + 2) / 3 * 4
		tokens := encoded / 4
		if tokens < 1 {
			tokens = 1
		}
		total += tokens
	}
	return total
}

// Prune evicts the oldest non-system messages until the estimated total
// fits the budget: max(minBudget, contextLength - reserve), where reserve
// is maxTokens when set and defaultReserve otherwise. System messages are
// never evicted, and the resulting window never starts with a tool-result
// message, since that would reference a call id the backend cannot see.
func (b *Budgeter) Prune(msgs []core.Message, contextLength, maxTokens int) []core.Message {
	reserve := maxTokens
	if reserve <= 0 {
		reserve = defaultReserve
	}
	budget := contextLength - reserve
	if budget < minBudget {
		budget = minBudget
	}

	out := make([]core.Message, len(msgs))
	copy(out, msgs)

	total := 0
	for _, m := range out {
		total += b.MessageTokens(m)
	}

	for total > budget && countNonSystem(out) > 1 {
		idx := firstNonSystem(out)
		if idx < 0 {
			break
		}
		total -= b.MessageTokens(out[idx])
		out = append(out[:idx], out[idx+1:]...)
	}

	// Eviction may have orphaned tool results whose paired assistant
	// tool-call turn is gone.
	for {
		idx := firstNonSystem(out)
		if idx < 0 || out[idx].Role != core.RoleTool {
			break
		}
		out = append(out[:idx], out[idx+1:]...)
	}

	return out
}

func firstNonSystem(msgs []core.Message) int {
	for i, m := range msgs {
		if m.Role != core.RoleSystem {
			return i
		}
	}
	return -1
}

func countNonSystem(msgs []core.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role != core.RoleSystem {
			n++
		}
	}
	return n
}
