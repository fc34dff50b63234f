package normalize

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Strategy is one way of locating a JSON object inside completion text.
type Strategy struct {
	Name  string
	Parse func(text string) (map[string]Value, error)
}

// ErrNoJSON is returned when no strategy finds a JSON object.
var ErrNoJSON = eris.New("normalize: no json object found")

// Strategies are tried in order; the first to return an object wins.
var Strategies = []Strategy{
	{Name: "whole", Parse: parseWhole},
	{Name: "last_object", Parse: parseLastObject},
	{Name: "fenced", Parse: parseFenced},
	{Name: "repaired", Parse: parseRepaired},
}

// ParseObject runs Strategies over text and returns the first object found
// together with the name of the strategy that produced it.
func ParseObject(text string) (map[string]Value, string, error) {
	for _, s := range Strategies {
		obj, err := s.Parse(text)
		if err == nil {
			return obj, s.Name, nil
		}
	}
	return nil, "", ErrNoJSON
}

func parseWhole(text string) (map[string]Value, error) {
	return decodeObject(strings.TrimSpace(text))
}

// parseLastObject tries every balanced-brace substring, last first, which
// handles prose wrapped around the JSON.
func parseLastObject(text string) (map[string]Value, error) {
	candidates := balancedObjects(text)
	for i := len(candidates) - 1; i >= 0; i-- {
		cleaned := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(candidates[i])
		if obj, err := decodeObject(cleaned); err == nil {
			return obj, nil
		}
	}
	return nil, ErrNoJSON
}

var fenceRe = regexp.MustCompile("(?i)```(?:json)?")

func parseFenced(text string) (map[string]Value, error) {
	return decodeObject(strings.TrimSpace(fenceRe.ReplaceAllString(text, "")))
}

// balancedObjects returns every balanced {...} substring of text, nested
// ones included, ordered by where they close. An enclosing object therefore
// follows the objects inside it. Braces inside JSON strings are ignored and
// an unclosed brace never hides a complete object that follows it.
func balancedObjects(text string) []string {
	var out []string
	var starts []int
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if len(starts) > 0 {
				inString = true
			}
		case '{':
			starts = append(starts, i)
		case '}':
			if len(starts) == 0 {
				continue
			}
			start := starts[len(starts)-1]
			starts = starts[:len(starts)-1]
			out = append(out, text[start:i+1])
		}
	}
	return out
}
