package normalize

import (
	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/model"
)

// Match normalizes completion text into a MatchResult. It never fails; text
// with no usable content yields a zero-score result.
func Match(text string) model.MatchResult {
	obj, strategy, err := ParseObject(text)
	if err == nil {
		zap.L().Debug("normalize: match parsed", zap.String("strategy", strategy))
		return buildMatch(obj)
	}

	zap.L().Debug("normalize: match falling back to text extraction",
		zap.String("preview", TruncateForLog(text, 200)),
	)
	return extractMatch(text)
}

// Criteria normalizes completion text into a CriteriaInfo. Required fields
// outside model.AllowedFields are dropped silently.
func Criteria(text string) model.CriteriaInfo {
	obj, strategy, err := ParseObject(text)
	if err == nil {
		zap.L().Debug("normalize: criteria parsed", zap.String("strategy", strategy))
		return buildCriteria(obj)
	}

	zap.L().Debug("normalize: criteria falling back to text extraction",
		zap.String("preview", TruncateForLog(text, 200)),
	)
	return extractCriteria(text)
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when
// truncated.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
