package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/model"
	"github.com/sells-group/company-qualifier/internal/normalize"
)

// NoDataReason is the reason given when there is nothing to evaluate.
const NoDataReason = "No valid company data available for evaluation"

// Evaluator scores one company record against a CriteriaInfo.
type Evaluator struct {
	caller Completer
}

// NewEvaluator creates an Evaluator backed by caller.
func NewEvaluator(caller Completer) *Evaluator {
	return &Evaluator{caller: caller}
}

// Evaluate never fails. Every failure becomes a zero-score result whose
// reason explains what went wrong. The full record is sent regardless of
// info.RequiredFields.
func (e *Evaluator) Evaluate(ctx context.Context, info *model.CriteriaInfo, data map[string]any) model.MatchResult {
	start := time.Now()
	done := func(res model.MatchResult) model.MatchResult {
		res.ProcessingTimeSeconds = time.Since(start).Seconds()
		return res
	}

	if len(data) == 0 {
		return done(model.ZeroMatch(NoDataReason))
	}
	if info == nil {
		info = &model.CriteriaInfo{RequiredFields: []string{}}
	}

	criteriaJSON, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return done(model.ZeroMatch(fmt.Sprintf("Evaluation failed: %v", err)))
	}
	companyJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return done(model.ZeroMatch(fmt.Sprintf("Evaluation failed: %v", err)))
	}

	text, err := e.caller.Call(ctx, evaluateSystemPrompt, evaluateUserPrompt(criteriaJSON, companyJSON))
	if err != nil {
		zap.L().Warn("matching: evaluation call failed", zap.Error(err))
		return done(model.ZeroMatch(fmt.Sprintf("Evaluation failed: %v", err)))
	}

	res := normalize.Match(text)
	zap.L().Debug("matching: evaluated",
		zap.Int("match_score", res.MatchScore),
		zap.Float64("confidence", res.Confidence),
		zap.String("response", normalize.TruncateForLog(text, 200)),
	)
	return done(res)
}
