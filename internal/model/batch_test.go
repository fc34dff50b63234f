package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchResult_IsMatch(t *testing.T) {
	assert.False(t, MatchResult{MatchScore: 79}.IsMatch())
	assert.True(t, MatchResult{MatchScore: 80}.IsMatch())
	assert.True(t, MatchResult{MatchScore: 100}.IsMatch())
}

func TestSuccessOutcome(t *testing.T) {
	res := MatchResult{MatchScore: 85, Confidence: 0.9, Reason: "fits", ProcessingTimeSeconds: 1.5}
	out := SuccessOutcome("5560000001", res, map[string]any{"CompanyName": "Acme"})

	assert.Equal(t, ItemSuccess, out.Status)
	require.NotNil(t, out.IsMatch)
	assert.True(t, *out.IsMatch)
	require.NotNil(t, out.MatchScore)
	assert.Equal(t, 85, *out.MatchScore)
	assert.Nil(t, out.Error)
	assert.NotNil(t, out.MatchedKeywords)
	assert.NotNil(t, out.UnmatchedKeywords)
}

func TestRetrievalOnlyOutcome(t *testing.T) {
	out := RetrievalOnlyOutcome("5560000001", nil, 2*time.Second)
	assert.Equal(t, ItemSuccess, out.Status)
	require.NotNil(t, out.IsMatch)
	assert.True(t, *out.IsMatch)
	assert.Nil(t, out.MatchScore)
	assert.Nil(t, out.Confidence)
	assert.InDelta(t, 2.0, out.ProcessingTimeSeconds, 0.001)
}

func TestFailedOutcome(t *testing.T) {
	out := FailedOutcome("1", "Failed to retrieve company data", "Company data not found", false, nil)
	assert.Equal(t, ItemFailed, out.Status)
	require.NotNil(t, out.Error)
	assert.Equal(t, "Company data not found", *out.Error)
	require.NotNil(t, out.IsMatch)
	assert.False(t, *out.IsMatch)
	assert.Equal(t, 0, *out.MatchScore)
	assert.Equal(t, 0.0, *out.Confidence)

	retrieval := FailedOutcome("1", "", "", true, nil)
	assert.Nil(t, retrieval.IsMatch)
	assert.Equal(t, "unknown error", *retrieval.Error)
	assert.Equal(t, "unknown error", retrieval.Reason)
}

func TestSummarize(t *testing.T) {
	outcomes := []BatchItemOutcome{
		SuccessOutcome("1", MatchResult{MatchScore: 90}, nil),
		SuccessOutcome("2", MatchResult{MatchScore: 40}, nil),
		FailedOutcome("3", "", "boom", false, nil),
		SuccessOutcome("4", MatchResult{MatchScore: 80}, nil),
	}

	s := Summarize(4, outcomes, 10*time.Second)
	assert.Equal(t, 4, s.TotalCompanies)
	assert.Equal(t, 4, s.ProcessedCompanies)
	assert.Equal(t, 3, s.SuccessfulEvaluations)
	assert.Equal(t, 1, s.FailedEvaluations)
	assert.Equal(t, 2, s.MatchingCompanies)
	assert.Equal(t, "50.0%", s.MatchRate)
	assert.Equal(t, "75.0%", s.SuccessRate)
	assert.InDelta(t, 10.0, s.TotalProcessingTime, 0.001)
	assert.InDelta(t, 2.5, s.AverageTimePerCompany, 0.001)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(0, nil, time.Second)
	assert.Equal(t, "0%", s.MatchRate)
	assert.Equal(t, 0.0, s.AverageTimePerCompany)
}
