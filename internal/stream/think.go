package stream

import "strings"

const (
	openTag  = "<think>"
	closeTag = "</think>"
)

// thinkSplitter classifies streamed text into visible and thinking content
// by scanning for case-insensitive <think>/</think> delimiters. A delimiter
// can be split across two delta chunks, so the longest suffix of the
// current text that is a prefix of either delimiter is carried over and
// re-prepended to the next chunk before scanning resumes.
type thinkSplitter struct {
	inside bool
	carry  string
}

// Split consumes one chunk and returns the visible and thinking portions
// recognized so far. Text held back as a possible partial delimiter is
// returned by a later call or by Drain.
func (s *thinkSplitter) Split(text string) (visible, thinking string) {
	var vis, think strings.Builder

	buf := s.carry + text
	s.carry = ""

	for buf != "" {
		tag := openTag
		if s.inside {
			tag = closeTag
		}

		idx := foldIndex(buf, tag)
		if idx >= 0 {
			if s.inside {
				think.WriteString(buf[:idx])
			} else {
				vis.WriteString(buf[:idx])
			}
			s.inside = !s.inside
			buf = buf[idx+len(tag):]
			continue
		}

		keep := partialTagSuffix(buf)
		emit := buf[:len(buf)-keep]
		s.carry = buf[len(buf)-keep:]
		if s.inside {
			think.WriteString(emit)
		} else {
			vis.WriteString(emit)
		}
		break
	}

	return vis.String(), think.String()
}

// Drain returns any leftover partial-tag buffer as plain content. It must
// be called exactly once, on final flush; held-back text is never silently
// dropped.
func (s *thinkSplitter) Drain() (visible, thinking string) {
	rest := s.carry
	s.carry = ""
	if rest == "" {
		return "", ""
	}
	if s.inside {
		return "", rest
	}
	return rest, ""
}

// partialTagSuffix returns the length of the longest suffix of s that is a
// strict prefix of either delimiter, compared case-insensitively.
func partialTagSuffix(s string) int {
	max := len(closeTag) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		suffix := s[len(s)-k:]
		if k <= len(openTag) && foldEqual(suffix, openTag[:k]) {
			return k
		}
		if foldEqual(suffix, closeTag[:k]) {
			return k
		}
	}
	return 0
}

// foldIndex returns the index of the first case-insensitive occurrence of
// tag in s. tag must be lowercase ASCII. Matching is byte-wise, so indices
// are valid offsets into s even when s holds runes whose case conversion
// would change their byte length.
func foldIndex(s, tag string) int {
	for i := 0; i+len(tag) <= len(s); i++ {
		if foldEqual(s[i:i+len(tag)], tag) {
			return i
		}
	}
	return -1
}

// foldEqual reports whether s equals lowercase-ASCII tag under ASCII case
// folding. Non-ASCII bytes in s never match.
func foldEqual(s, tag string) bool {
	for i := 0; i < len(tag); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != tag[i] {
			return false
		}
	}
	return true
}
