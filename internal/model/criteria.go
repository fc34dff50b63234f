// Package model defines the records exchanged by the criteria interpreter,
// the match evaluator and the batch orchestrator.
package model

import "strings"

// AllowedFields is the fixed vocabulary of company-data sections a criteria
// interpretation may declare as required. Order is significant: it is the
// order presented to the completion service.
var AllowedFields = []string{
	"name",
	"orgnr",
	"purpose",
	"companyType",
	"contact",
	"location",
	"industry",
	"registration",
	"governance",
	"financialSummary",
	"accountingHistory",
	"risks",
}

var allowedIndex = func() map[string]string {
	idx := make(map[string]string, len(AllowedFields))
	for _, f := range AllowedFields {
		idx[strings.ToLower(f)] = f
	}
	return idx
}()

// CriteriaInfo is the structured interpretation of a free-text criteria
// string. It is created once per distinct criteria and shared read-only by
// every evaluation that uses it.
type CriteriaInfo struct {
	Summary        string   `json:"summary"`
	RequiredFields []string `json:"required_fields"`
}

// NewCriteriaInfo builds a CriteriaInfo, dropping required fields outside
// AllowedFields.
func NewCriteriaInfo(summary string, fields []string) *CriteriaInfo {
	return &CriteriaInfo{
		Summary:        summary,
		RequiredFields: FilterAllowedFields(fields),
	}
}

// FilterAllowedFields returns the members of fields that belong to the
// vocabulary, in canonical spelling, first-occurrence order and without
// duplicates. Matching is case-insensitive. The result is never nil.
func FilterAllowedFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		canonical, ok := allowedIndex[strings.ToLower(strings.TrimSpace(f))]
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

// AllFieldsCriteria is the "use all data" interpretation, used when a
// criteria string cannot be interpreted.
func AllFieldsCriteria(summary string) *CriteriaInfo {
	fields := make([]string, len(AllowedFields))
	copy(fields, AllowedFields)
	return &CriteriaInfo{Summary: summary, RequiredFields: fields}
}
