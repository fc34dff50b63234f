package normalize

import (
	"strings"

	"github.com/sells-group/company-qualifier/internal/model"
)

// field binds the accepted spellings of one JSON key to its coercion.
type field[T any] struct {
	aliases []string
	set     func(*T, Value)
}

var matchFields = []field[model.MatchResult]{
	{
		aliases: []string{"match_score", "matchScore", "score"},
		set:     func(r *model.MatchResult, v Value) { r.MatchScore = Score(v) },
	},
	{
		aliases: []string{"confidence", "confidence_score", "confidenceLevel"},
		set:     func(r *model.MatchResult, v Value) { r.Confidence = Confidence(v) },
	},
	{
		aliases: []string{"reason", "reasoning", "explanation"},
		set:     func(r *model.MatchResult, v Value) { r.Reason = Text(v) },
	},
	{
		aliases: []string{"matched_keywords", "matchedKeywords"},
		set:     func(r *model.MatchResult, v Value) { r.MatchedKeywords = Strings(v) },
	},
	{
		aliases: []string{"unmatched_keywords", "unmatchedKeywords"},
		set:     func(r *model.MatchResult, v Value) { r.UnmatchedKeywords = Strings(v) },
	},
}

var criteriaFields = []field[model.CriteriaInfo]{
	{
		aliases: []string{"summary", "criteria_summary"},
		set:     func(c *model.CriteriaInfo, v Value) { c.Summary = Text(v) },
	},
	{
		aliases: []string{"required_fields", "requiredFields", "fields"},
		set: func(c *model.CriteriaInfo, v Value) {
			c.RequiredFields = model.FilterAllowedFields(Strings(v))
		},
	},
}

// keyOf reduces a JSON key to its comparable form: "Match-Score",
// "match_score" and "matchScore" all become "matchscore".
func keyOf(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

// apply sets every field of dst whose alias appears in obj. For each field
// the first alias present wins. It reports how many fields were set.
func apply[T any](dst *T, obj map[string]Value, fields []field[T]) int {
	byKey := make(map[string]Value, len(obj))
	for k, v := range obj {
		byKey[keyOf(k)] = v
	}

	set := 0
	for _, f := range fields {
		for _, alias := range f.aliases {
			if v, ok := byKey[keyOf(alias)]; ok {
				f.set(dst, v)
				set++
				break
			}
		}
	}
	return set
}

// unwrap descends into a single nested object when the top level carries
// none of the known fields, as in {"result": {"match_score": 80}}.
func unwrap[T any](obj map[string]Value, fields []field[T]) map[string]Value {
	var scratch T
	if apply(&scratch, obj, fields) > 0 || len(obj) != 1 {
		return obj
	}
	for _, v := range obj {
		if v.Kind == KindObject {
			return v.Obj
		}
	}
	return obj
}

func buildMatch(obj map[string]Value) model.MatchResult {
	res := model.ZeroMatch("")
	apply(&res, unwrap(obj, matchFields), matchFields)
	return res
}

func buildCriteria(obj map[string]Value) model.CriteriaInfo {
	info := model.CriteriaInfo{RequiredFields: []string{}}
	apply(&info, unwrap(obj, criteriaFields), criteriaFields)
	return info
}
