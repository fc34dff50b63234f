package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// confidenceWords maps natural-language confidence to a fixed value.
var confidenceWords = map[string]float64{
	"very high":   0.95,
	"high":        0.9,
	"medium high": 0.75,
	"medium":      0.7,
	"medium low":  0.4,
	"low":         0.3,
	"very low":    0.2,
	"certain":     1.0,
	"uncertain":   0.5,
	"doubtful":    0.3,
}

var (
	intRe     = regexp.MustCompile(`\d+`)
	decimalRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	wordSepRe = regexp.MustCompile(`[\s_-]+`)
)

// foldWords case-folds s, collapses separators to single spaces and trims
// surrounding punctuation, so "Medium-High." and "medium  high" both read as
// "medium high". A Caser is stateful, hence one per call.
func foldWords(s string) string {
	folded := wordSepRe.ReplaceAllString(cases.Fold().String(s), " ")
	return strings.Trim(folded, " .!?,;:\"'")
}

// Score coerces a match score into [0,100]. Strings yield their first
// integer; anything unreadable yields 0.
func Score(v Value) int {
	switch v.Kind {
	case KindNumber:
		return clampInt(v.Num, 0, 100)
	case KindString:
		if m := intRe.FindString(v.Str); m != "" {
			f, err := strconv.ParseFloat(m, 64)
			if err != nil {
				return 0
			}
			return clampInt(f, 0, 100)
		}
		return 0
	default:
		return 0
	}
}

// Confidence coerces a confidence into [0,1]. Known words map to fixed
// values, percentages and bare numbers above 1 are divided by 100, and
// anything unreadable yields 0.
func Confidence(v Value) float64 {
	switch v.Kind {
	case KindNumber:
		return clampFloat(v.Num, 0, 1)
	case KindString:
		return confidenceFromText(v.Str)
	default:
		return 0
	}
}

func confidenceFromText(s string) float64 {
	words := foldWords(s)
	if c, ok := confidenceWords[words]; ok {
		return c
	}

	if strings.Contains(s, "%") {
		if m := percentRe.FindStringSubmatch(s); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				return clampFloat(f/100, 0, 1)
			}
		}
	}

	if m := decimalRe.FindString(s); m != "" {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		if f > 1.0 {
			f /= 100
		}
		return clampFloat(f, 0, 1)
	}

	return 0
}

// Text flattens v into a string. Objects are serialized, lists joined with
// spaces and null becomes "".
func Text(v Value) string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindArray:
		parts := make([]string, 0, len(v.Arr))
		for _, e := range v.Arr {
			if e.Kind == KindNull {
				continue
			}
			parts = append(parts, Text(e))
		}
		return strings.Join(parts, " ")
	case KindObject:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

// Strings coerces v into a list of strings. Lists are stringified element by
// element, strings are read as a JSON array or else split on commas, objects
// contribute their values and null yields an empty list. The result is never
// nil.
func Strings(v Value) []string {
	out := []string{}
	switch v.Kind {
	case KindArray:
		for _, e := range v.Arr {
			if e.Kind == KindNull {
				continue
			}
			if s := strings.TrimSpace(Text(e)); s != "" {
				out = append(out, s)
			}
		}
	case KindString:
		trimmed := strings.TrimSpace(v.Str)
		var arr []any
		if strings.HasPrefix(trimmed, "[") && json.Unmarshal([]byte(trimmed), &arr) == nil {
			return Strings(FromJSON(arr))
		}
		for _, part := range strings.Split(trimmed, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	case KindObject:
		return Strings(Value{Kind: KindArray, Arr: v.sortedValues()})
	}
	return out
}

func clampInt(f float64, lo, hi int) int {
	if math.IsNaN(f) {
		return lo
	}
	if f < float64(lo) {
		return lo
	}
	if f > float64(hi) {
		return hi
	}
	return int(f)
}

func clampFloat(f, lo, hi float64) float64 {
	if math.IsNaN(f) || f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
