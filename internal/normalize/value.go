// Package normalize coerces free-form completion-service text into
// schema-valid CriteriaInfo and MatchResult records. Normalization never
// fails: when nothing parses it degrades to safe defaults.
package normalize

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a decoded JSON value of unknown shape. Completion services return
// anything from the documented type to prose, so every field is read through
// a Value and coerced explicitly.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	// Str holds the string for KindString and the literal for KindNumber.
	Str string
	Arr []Value
	Obj map[string]Value
}

// Null is the zero Value.
var Null = Value{Kind: KindNull}

// String wraps s as a KindString value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number wraps f as a KindNumber value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f, Str: strconv.FormatFloat(f, 'f', -1, 64)}
}

// FromJSON converts the output of a json.Decoder (with UseNumber) or
// json.Unmarshal into a Value.
func FromJSON(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Value{Kind: KindNumber, Num: f, Str: t.String()}
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case string:
		return String(t)
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = FromJSON(e)
		}
		return Value{Kind: KindArray, Arr: arr}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = FromJSON(e)
		}
		return Value{Kind: KindObject, Obj: obj}
	default:
		return Null
	}
}

// Interface converts v back to plain Go values for re-serialization.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return json.Number(v.Str)
	case KindString:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Obj))
		for k, e := range v.Obj {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// sortedValues returns the values of an object ordered by key.
func (v Value) sortedValues() []Value {
	keys := make([]string, 0, len(v.Obj))
	for k := range v.Obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Value, len(keys))
	for i, k := range keys {
		out[i] = v.Obj[k]
	}
	return out
}

// ErrNotObject is returned when decoded text is valid JSON but not an object.
var ErrNotObject = eris.New("normalize: json is not an object")

// decodeObject strictly decodes text as exactly one JSON object.
func decodeObject(text string) (map[string]Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "normalize: decode json")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, eris.New("normalize: trailing data after json object")
	}

	v := FromJSON(raw)
	if v.Kind != KindObject {
		return nil, ErrNotObject
	}
	return v.Obj, nil
}
