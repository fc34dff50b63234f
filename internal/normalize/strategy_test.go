package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancedObjects(t *testing.T) {
	text := `x {"a": "}"} y {"b": {"c": 1}} {"unclosed": `
	assert.Equal(t, []string{`{"a": "}"}`, `{"c": 1}`, `{"b": {"c": 1}}`}, balancedObjects(text))
	assert.Empty(t, balancedObjects("no braces here"))
	assert.Equal(t, []string{`{"q": "say \"}\""}`}, balancedObjects(`} {"q": "say \"}\""}`))
	assert.Equal(t, []string{`{"n": 1}`}, balancedObjects(`I think {maybe. {"n": 1}`))
}

func TestParseObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		strategy string
		score    int
	}{
		{"whole object", `  {"match_score": 90}  `, "whole", 90},
		{"prose around object", `Here you go: {"match_score": 70} hope it helps`, "last_object", 70},
		{"last object wins", `{"match_score": 10} and then {"match_score": 55}`, "last_object", 55},
		{"newlines inside object", "Result:\n{\n\t\"match_score\": 64\n}\n", "last_object", 64},
		{"fenced block", "```json\n{\"match_score\": 60}\n```", "last_object", 60},
		{"stray open brace", `I think {maybe. {"match_score": 85}`, "last_object", 85},
		{"trailing comma", `{"match_score": 70, "confidence": 0.6,}`, "repaired", 70},
		{"truncated array", `{"match_score": 88, "matched_keywords": ["a", "b"], "unmatched_keywords": [`, "repaired", 88},
		{"truncated string", `Answer: {"match_score": 45, "reason": "cut off mid`, "repaired", 45},
		{"truncated key", `{"match_score": 33, "confid`, "repaired", 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			obj, strategy, err := ParseObject(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, strategy)
			assert.Equal(t, tt.score, Score(obj["match_score"]))
		})
	}
}

func TestParseObject_NoJSON(t *testing.T) {
	_, _, err := ParseObject("Score: 72, no json at all")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, _, err = ParseObject(`[1, 2, 3]`)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestRepairTruncatedJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"complete", `{"a": 1}`, `{"a": 1}`},
		{"open array", `{"a": [`, `{"a": []}`},
		{"open string", `{"a": "hel`, `{"a": "hel"}`},
		{"dangling escape", `{"a": "x\`, `{"a": "x"}`},
		{"trailing comma", `{"a": 1, "b": [1, 2,],}`, `{"a": 1, "b": [1, 2]}`},
		{"trailing prose", `{"a": 1} thanks!`, `{"a": 1}`},
		{"mismatched closer", `{"a": 1]}`, `{"a": 1}`},
		{"raw newline in string", "{\"a\": \"x\ny\"}", `{"a": "x y"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := repairTruncatedJSON(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepairTruncatedJSON_CommaOffsets(t *testing.T) {
	_, commas := repairTruncatedJSON(`{"a": "x,y", "b": 2, "c`)
	assert.Equal(t, []int{11, 19}, commas)
}

func TestParseRepaired_NoObject(t *testing.T) {
	_, err := parseRepaired("Score: 40, nothing structured")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = parseRepaired(`{"match_score": `)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestParseFenced(t *testing.T) {
	obj, err := parseFenced("```JSON\n{\"summary\": \"x\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "x", Text(obj["summary"]))
}

func TestDecodeObject(t *testing.T) {
	_, err := decodeObject(`{"a": 1} trailing`)
	assert.Error(t, err)

	_, err = decodeObject(`"just a string"`)
	assert.ErrorIs(t, err, ErrNotObject)

	obj, err := decodeObject(`{"n": 12345678901234567890}`)
	require.NoError(t, err)
	assert.Equal(t, KindNumber, obj["n"].Kind)
	assert.Equal(t, "12345678901234567890", obj["n"].Str)
}
