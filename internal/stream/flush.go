// Package stream buffers token deltas for UI consumption. Small outputs
// flush often to keep perceived latency low; as cumulative output grows the
// flush threshold grows with it to reduce consumer churn.
package stream

import (
	"strings"
	"time"
)

// Flush is one batch of classified output handed to the consumer.
type Flush struct {
	Content  string // visible content
	Thinking string // content between <think> delimiters
}

// Policy holds the adaptive flush thresholds. The numbers are consumer
// tuning, not a contract; zero values take the defaults.
type Policy struct {
	// Steps maps cumulative output size to a flush threshold. The last
	// step whose Above bound is met wins.
	Steps []Step

	// MaxInterval bounds how long buffered text may wait regardless of
	// size.
	MaxInterval time.Duration

	// SlowFlush marks a consumer flush as slow; the size threshold is
	// doubled (up to MaxChars) while flushes stay slow.
	SlowFlush time.Duration

	// MaxChars caps threshold growth from slow-flush backoff.
	MaxChars int
}

type Step struct {
	Above int // cumulative chars at which this step applies
	Chars int // flush once this many chars are buffered
}

func DefaultPolicy() Policy {
	return Policy{
		Steps: []Step{
			{Above: 0, Chars: 64},
			{Above: 4 << 10, Chars: 256},
			{Above: 64 << 10, Chars: 1024},
			{Above: 512 << 10, Chars: 4096},
		},
		MaxInterval: 80 * time.Millisecond,
		SlowFlush:   100 * time.Millisecond,
		MaxChars:    16 << 10,
	}
}

// Controller applies the flush policy to a raw delta stream. It is not
// safe for concurrent use; one controller serves one stream consumer.
type Controller struct {
	policy   Policy
	emit     func(Flush)
	splitter thinkSplitter

	visible   strings.Builder
	thinking  strings.Builder
	total     int
	backoff   int // multiplier from slow-flush backoff, power of two
	lastFlush time.Time
	now       func() time.Time
}

// NewController wraps emit with adaptive buffering. emit is called on the
// caller's goroutine, inside Write or Close.
func NewController(policy Policy, emit func(Flush)) *Controller {
	if len(policy.Steps) == 0 {
		policy = DefaultPolicy()
	}
	c := &Controller{
		policy:  policy,
		emit:    emit,
		backoff: 1,
		now:     time.Now,
	}
	c.lastFlush = c.now()
	return c
}

// Write feeds one delta into the controller, flushing when the adaptive
// threshold or the latency bound is hit.
func (c *Controller) Write(text string) {
	if text == "" {
		return
	}
	vis, think := c.splitter.Split(text)
	c.visible.WriteString(vis)
	c.thinking.WriteString(think)
	c.total += len(text)

	if c.shouldFlush() {
		c.flush()
	}
}

// Close drains the partial-tag carry and flushes whatever is buffered.
// Partial delimiter text is emitted as plain content, never dropped.
func (c *Controller) Close() {
	vis, think := c.splitter.Drain()
	c.visible.WriteString(vis)
	c.thinking.WriteString(think)
	c.flush()
}

func (c *Controller) shouldFlush() bool {
	buffered := c.visible.Len() + c.thinking.Len()
	if buffered == 0 {
		return false
	}
	if buffered >= c.threshold() {
		return true
	}
	return c.policy.MaxInterval > 0 && c.now().Sub(c.lastFlush) >= c.policy.MaxInterval
}

func (c *Controller) threshold() int {
	chars := c.policy.Steps[0].Chars
	for _, step := range c.policy.Steps {
		if c.total >= step.Above {
			chars = step.Chars
		}
	}
	chars *= c.backoff
	if c.policy.MaxChars > 0 && chars > c.policy.MaxChars {
		chars = c.policy.MaxChars
	}
	return chars
}

func (c *Controller) flush() {
	if c.visible.Len() == 0 && c.thinking.Len() == 0 {
		c.lastFlush = c.now()
		return
	}

	f := Flush{
		Content:  c.visible.String(),
		Thinking: c.thinking.String(),
	}
	c.visible.Reset()
	c.thinking.Reset()

	start := c.now()
	c.emit(f)
	elapsed := c.now().Sub(start)
	c.lastFlush = c.now()

	// Back off when the consumer is struggling, recover when it keeps up.
	if c.policy.SlowFlush > 0 {
		if elapsed > c.policy.SlowFlush {
			if c.threshold() < c.policy.MaxChars {
				c.backoff *= 2
			}
		} else if c.backoff > 1 {
			c.backoff /= 2
		}
	}
}
