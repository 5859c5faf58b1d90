package pipeline

import (
	"encoding/json"
	"strings"
)

// StripFences removes Markdown code-fence delimiters that models love to
// wrap JSON in, e.g. ```json ... ```.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first == "json" || first == "" {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseJSON parses raw model output into an object. Valid input parses
// directly; on failure a bounded set of structural repairs is tried,
// each with a single re-parse. Returns nil,false when nothing works.
func ParseJSON(raw string) (map[string]any, bool) {
	s := StripFences(raw)
	if i := strings.IndexByte(s, '{'); i > 0 {
		s = s[i:]
	} else if i < 0 {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err == nil {
		return m, true
	}
	for _, candidate := range repairs(s) {
		m = nil
		if err := json.Unmarshal([]byte(candidate), &m); err == nil {
			return m, true
		}
	}
	return nil, false
}

// repairs builds repair candidates in cheapest-first order:
//  1. truncate trailing garbage after the last balanced close
//  2. append the closing braces/brackets still open at end of input
//  3. drop the trailing fragment after the last top-level comma
func repairs(s string) []string {
	var out []string

	balancedEnd, openStack, lastTopComma := scan(s)

	if balancedEnd >= 0 && balancedEnd < len(s)-1 {
		out = append(out, s[:balancedEnd+1])
	}
	if len(openStack) > 0 {
		var b strings.Builder
		b.WriteString(s)
		for i := len(openStack) - 1; i >= 0; i-- {
			if openStack[i] == '{' {
				b.WriteByte('}')
			} else {
				b.WriteByte(']')
			}
		}
		out = append(out, b.String())
	}
	if lastTopComma > 0 {
		out = append(out, s[:lastTopComma]+"}")
	}
	return out
}

// scan walks the input tracking JSON string/escape state and nesting.
// It reports the index where nesting last returned to zero (-1 if
// never), the brackets still open at end of input, and the index of the
// last comma seen at depth 1 outside any string.
func scan(s string) (balancedEnd int, openStack []byte, lastTopComma int) {
	balancedEnd = -1
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			openStack = append(openStack, c)
		case '}', ']':
			// An unmatched closer in trailing garbage must not count
			// as returning to zero nesting.
			if len(openStack) > 0 {
				openStack = openStack[:len(openStack)-1]
				if len(openStack) == 0 {
					balancedEnd = i
				}
			}
		case ',':
			if len(openStack) == 1 {
				lastTopComma = i
			}
		}
	}
	return balancedEnd, openStack, lastTopComma
}
