package normalize

import (
	"strings"
)

// maxRepairCuts bounds how many trailing members parseRepaired drops while
// looking for a decodable prefix.
const maxRepairCuts = 64

// parseRepaired handles output cut off mid-object or carrying trailing
// commas. Starting from each '{' in turn it closes the open string and
// delimiters; when the result still does not decode, the last partial
// member is dropped and the repair retried.
func parseRepaired(text string) (map[string]Value, error) {
	text = strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if obj, ok := repairFrom(text[start:]); ok {
			return obj, nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrNoJSON
}

func repairFrom(s string) (map[string]Value, bool) {
	for cuts := 0; cuts <= maxRepairCuts; cuts++ {
		repaired, commas := repairTruncatedJSON(s)
		if obj, err := decodeObject(repaired); err == nil {
			return obj, true
		}
		if len(commas) == 0 {
			return nil, false
		}
		s = s[:commas[len(commas)-1]]
	}
	return nil, false
}

// repairTruncatedJSON closes an unterminated string and any unclosed
// brackets or braces, drops commas directly before a closer and replaces
// raw control whitespace inside strings. It also returns the offsets in s
// of the commas outside strings, which callers use to cut off a partial
// trailing member. Delimiters closed after the object ends are ignored.
func repairTruncatedJSON(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s) + 8)

	var stack []byte
	var commas []int
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			case c == '\n' || c == '\r' || c == '\t':
				c = ' '
			}
			b.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				continue
			}
			stack = stack[:len(stack)-1]
			trimTrailingComma(&b)
			b.WriteByte(c)
			if len(stack) == 0 {
				return b.String(), commas
			}
			continue
		case ',':
			commas = append(commas, i)
		}
		b.WriteByte(c)
	}

	if escape {
		// A dangling backslash would escape the closing quote.
		out := b.String()
		b.Reset()
		b.WriteString(out[:len(out)-1])
	}
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		trimTrailingComma(&b)
		b.WriteByte(stack[i])
	}
	return b.String(), commas
}

func trimTrailingComma(b *strings.Builder) {
	out := b.String()
	trimmed := strings.TrimRight(out, " \t\n\r,")
	if len(trimmed) != len(out) {
		b.Reset()
		b.WriteString(trimmed)
	}
}
