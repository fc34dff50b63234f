package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/company-qualifier/internal/model"
)

const maxFallbackReason = 200

// labelSep matches the separator between a label and its value, quoted
// JSON keys and values included.
const labelSep = `["']?\s*(?:[:=]|\bis\b|\bof\b)?\s*["']?`

var (
	scoreRe        = regexp.MustCompile(`(?i)score` + labelSep + `(\d+)`)
	confNumberRe   = regexp.MustCompile(`(?i)\bconfidence` + labelSep + `(\d+(?:\.\d+)?\s*%?)`)
	confWordRe     = regexp.MustCompile(`(?i)\bconfidence` + labelSep + `([a-z]+(?:[\s_-]+[a-z]+)?)`)
	reasonRe       = regexp.MustCompile(`(?i)\breason(?:ing)?\b["']?\s*(?:[:=]|\bis\b)\s*(?:"((?:[^"\\]|\\.)*)|([^.!?\n]+))`)
	keywordsRe     = regexp.MustCompile(`(?i)\b(un)?matched[_\s-]*keywords["']?\s*[:=]\s*(?:\[([^\]\n]*)|([^\n]+))`)
	summaryRe      = regexp.MustCompile(`(?i)\bsummary["']?\s*[:=]\s*([^\n]+)`)
	requiredRe     = regexp.MustCompile(`(?i)\brequired[_\s-]*fields["']?\s*[:=]\s*([^\n]+)`)
	sentenceSplitR = regexp.MustCompile(`[.!?]+`)
)

// extractMatch pulls MatchResult fields out of prose with regular
// expressions. It is the last resort and always succeeds.
func extractMatch(text string) model.MatchResult {
	res := model.ZeroMatch("")

	if m := scoreRe.FindStringSubmatch(text); m != nil {
		res.MatchScore = Score(String(m[1]))
	}

	res.Confidence = extractConfidence(text)

	if m := reasonRe.FindStringSubmatchIndex(text); m != nil {
		if m[2] >= 0 {
			res.Reason = strings.TrimSpace(unescapeJSON(text[m[2]:m[3]]))
		} else {
			res.Reason = strings.TrimSpace(text[m[4]:m[5]])
		}
	} else {
		res.Reason = firstSentence(text)
	}

	for _, m := range keywordsRe.FindAllStringSubmatchIndex(text, -1) {
		var list []string
		if m[4] >= 0 {
			list = quotedList(text[m[4]:m[5]])
		} else {
			list = Strings(String(strings.TrimRight(strings.TrimSpace(text[m[6]:m[7]]), ".")))
		}
		if m[2] >= 0 {
			res.UnmatchedKeywords = list
		} else {
			res.MatchedKeywords = list
		}
	}

	return res
}

func extractConfidence(text string) float64 {
	if m := confNumberRe.FindStringSubmatch(text); m != nil {
		return Confidence(String(m[1]))
	}

	m := confWordRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	phrase := foldWords(m[1])
	if c, ok := confidenceWords[phrase]; ok {
		return c
	}
	if first, _, found := strings.Cut(phrase, " "); found {
		if c, ok := confidenceWords[first]; ok {
			return c
		}
	}
	switch {
	case strings.Contains(phrase, "high"):
		return confidenceWords["high"]
	case strings.Contains(phrase, "medium"):
		return confidenceWords["medium"]
	case strings.Contains(phrase, "low"):
		return confidenceWords["low"]
	default:
		return confidenceWords["uncertain"]
	}
}

// extractCriteria is the CriteriaInfo counterpart of extractMatch.
func extractCriteria(text string) model.CriteriaInfo {
	info := model.CriteriaInfo{RequiredFields: []string{}}

	if m := summaryRe.FindStringSubmatch(text); m != nil {
		info.Summary = strings.Trim(strings.TrimSpace(m[1]), `",`)
	} else {
		info.Summary = firstSentence(text)
	}

	if m := requiredRe.FindStringSubmatch(text); m != nil {
		info.RequiredFields = model.FilterAllowedFields(Strings(String(strings.TrimSpace(m[1]))))
	}

	return info
}

// firstSentence returns the first non-empty sentence of text, truncated.
// JSON-shaped text has no sentences worth quoting and yields "".
func firstSentence(text string) string {
	if t := strings.TrimSpace(text); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
		return ""
	}
	for _, s := range sentenceSplitR.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			return truncate(s, maxFallbackReason)
		}
	}
	return ""
}

// quotedList splits the body of a JSON-ish array and drops the quotes
// around each item. A trailing item cut short keeps whatever text arrived.
func quotedList(body string) []string {
	out := []string{}
	for _, part := range strings.Split(body, ",") {
		if s := strings.TrimSpace(strings.Trim(strings.TrimSpace(part), `"'`)); s != "" {
			out = append(out, unescapeJSON(s))
		}
	}
	return out
}

// unescapeJSON decodes the escapes of a JSON string body, returning s
// unchanged when it is not valid.
func unescapeJSON(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
