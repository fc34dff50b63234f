package model

// MatchThreshold is the minimum score that counts as a positive match.
const MatchThreshold = 80

// MatchResult is the outcome of evaluating one company against one
// CriteriaInfo.
type MatchResult struct {
	MatchScore            int      `json:"match_score"`
	Reason                string   `json:"reason"`
	Confidence            float64  `json:"confidence"`
	MatchedKeywords       []string `json:"matched_keywords"`
	UnmatchedKeywords     []string `json:"unmatched_keywords"`
	ProcessingTimeSeconds float64  `json:"processing_time"`
}

// IsMatch reports whether the score reaches MatchThreshold.
func (r MatchResult) IsMatch() bool {
	return r.MatchScore >= MatchThreshold
}

// ZeroMatch returns the safe failure result carrying an explanatory reason.
func ZeroMatch(reason string) MatchResult {
	return MatchResult{
		Reason:            reason,
		MatchedKeywords:   []string{},
		UnmatchedKeywords: []string{},
	}
}
