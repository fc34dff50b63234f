package model

import (
	"fmt"
	"math"
	"time"
)

// ItemStatus is the per-company status of a batch outcome.
type ItemStatus string

const (
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
)

// BatchItemOutcome is one entry of a batch result list. Exactly one of
// (ItemSuccess with match fields) or (ItemFailed with Error) holds.
type BatchItemOutcome struct {
	OrgNumber             string         `json:"orgNumber"`
	Status                ItemStatus     `json:"status"`
	IsMatch               *bool          `json:"isMatch"`
	MatchScore            *int           `json:"matchScore"`
	Confidence            *float64       `json:"confidence"`
	Reason                string         `json:"reason"`
	MatchedKeywords       []string       `json:"matchedKeywords"`
	UnmatchedKeywords     []string       `json:"unmatchedKeywords"`
	ProcessingTimeSeconds float64        `json:"processingTimeSeconds"`
	Error                 *string        `json:"error"`
	CompanyProfile        map[string]any `json:"companyProfile"`
}

// SuccessOutcome builds the outcome of an evaluated company.
func SuccessOutcome(orgNumber string, res MatchResult, profile map[string]any) BatchItemOutcome {
	isMatch := res.IsMatch()
	score := res.MatchScore
	confidence := res.Confidence
	return BatchItemOutcome{
		OrgNumber:             orgNumber,
		Status:                ItemSuccess,
		IsMatch:               &isMatch,
		MatchScore:            &score,
		Confidence:            &confidence,
		Reason:                res.Reason,
		MatchedKeywords:       nonNil(res.MatchedKeywords),
		UnmatchedKeywords:     nonNil(res.UnmatchedKeywords),
		ProcessingTimeSeconds: res.ProcessingTimeSeconds,
		CompanyProfile:        profile,
	}
}

// RetrievalOnlyOutcome builds the outcome of a company that was fetched but
// not evaluated because no criteria were supplied. A null score signals
// "not evaluated" rather than "evaluated and matched".
func RetrievalOnlyOutcome(orgNumber string, profile map[string]any, elapsed time.Duration) BatchItemOutcome {
	isMatch := true
	return BatchItemOutcome{
		OrgNumber:             orgNumber,
		Status:                ItemSuccess,
		IsMatch:               &isMatch,
		Reason:                "Retrieved without criteria evaluation",
		MatchedKeywords:       []string{},
		UnmatchedKeywords:     []string{},
		ProcessingTimeSeconds: elapsed.Seconds(),
		CompanyProfile:        profile,
	}
}

// FailedOutcome builds a failed outcome. Score and confidence default to 0 so
// consumers can treat every outcome uniformly. In retrieval-only mode there
// is no match judgement and IsMatch stays null.
func FailedOutcome(orgNumber, reason, errMsg string, retrievalOnly bool, profile map[string]any) BatchItemOutcome {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	if reason == "" {
		reason = errMsg
	}
	score := 0
	confidence := 0.0
	out := BatchItemOutcome{
		OrgNumber:         orgNumber,
		Status:            ItemFailed,
		MatchScore:        &score,
		Confidence:        &confidence,
		Reason:            reason,
		MatchedKeywords:   []string{},
		UnmatchedKeywords: []string{},
		Error:             &errMsg,
		CompanyProfile:    profile,
	}
	if !retrievalOnly {
		isMatch := false
		out.IsMatch = &isMatch
	}
	return out
}

// BatchSummary aggregates a final outcome list.
type BatchSummary struct {
	TotalCompanies        int     `json:"totalCompanies"`
	ProcessedCompanies    int     `json:"processedCompanies"`
	SuccessfulEvaluations int     `json:"successfulEvaluations"`
	FailedEvaluations     int     `json:"failedEvaluations"`
	MatchingCompanies     int     `json:"matchingCompanies"`
	MatchRate             string  `json:"matchRate"`
	SuccessRate           string  `json:"successRate"`
	TotalProcessingTime   float64 `json:"totalProcessingTimeSeconds"`
	AverageTimePerCompany float64 `json:"averageTimePerCompany"`
}

// Summarize computes the summary of outcomes for a batch of total requested
// companies that took elapsed wall-clock time.
func Summarize(total int, outcomes []BatchItemOutcome, elapsed time.Duration) BatchSummary {
	s := BatchSummary{
		TotalCompanies:      total,
		ProcessedCompanies:  len(outcomes),
		MatchRate:           "0%",
		SuccessRate:         "0%",
		TotalProcessingTime: round2(elapsed.Seconds()),
	}
	for _, o := range outcomes {
		if o.Status == ItemSuccess {
			s.SuccessfulEvaluations++
		} else {
			s.FailedEvaluations++
		}
		if o.IsMatch != nil && *o.IsMatch {
			s.MatchingCompanies++
		}
	}
	if n := len(outcomes); n > 0 {
		s.MatchRate = percent(s.MatchingCompanies, n)
		s.SuccessRate = percent(s.SuccessfulEvaluations, n)
		s.AverageTimePerCompany = round2(elapsed.Seconds() / float64(n))
	}
	return s
}

func percent(part, whole int) string {
	return fmt.Sprintf("%.1f%%", float64(part)/float64(whole)*100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
