package company

import (
	"strings"
)

// b2bKeywords mark an industry description as business-to-business.
var b2bKeywords = []string{"företag", "business", "konsult", "utveckling", "organisation"}

// Clean builds the evaluation record and the company profile from a raw
// registry document. The document is either {"company": {...}} or the
// company object itself. The record is keyed by model.AllowedFields plus a
// "meta" section.
func Clean(raw map[string]any) (record, profile map[string]any) {
	c, ok := raw["company"].(map[string]any)
	if !ok {
		c = raw
	}
	if len(c) == 0 {
		return nil, nil
	}
	return cleanRecord(c), cleanProfile(c)
}

func cleanRecord(c map[string]any) map[string]any {
	return map[string]any{
		"name":        c["name"],
		"orgnr":       c["orgnr"],
		"purpose":     c["purpose"],
		"companyType": dig(c, "legalForm.name"),
		"contact": map[string]any{
			"phone":          firstNonNil(c["phone"], c["legalPhone"]),
			"email":          c["email"],
			"website":        c["homePage"],
			"contactPersons": c["contactPersons"],
		},
		"location": map[string]any{
			"visitorAddress": c["visitorAddress"],
			"postalAddress":  c["postalAddress"],
			"municipality":   dig(c, "location.municipality"),
			"county":         dig(c, "location.county"),
			"region":         dig(c, "location.countryPart"),
			"coordinates":    dig(c, "location.coordinates"),
		},
		"industry": map[string]any{
			"mainSni":           dig(c, "currentIndustry.code"),
			"mainSniName":       dig(c, "currentIndustry.name"),
			"naceCodes":         c["naceIndustries"],
			"industryHierarchy": c["industryHierarchy"],
		},
		"registration": map[string]any{
			"legalForm":                  dig(c, "legalForm.name"),
			"companyTypeCode":            dig(c, "legalForm.code"),
			"foundedDate":                c["foundedDate"],
			"shareCapital_SEK":           c["shareCapital"],
			"status":                     dig(c, "status.status"),
			"statusDate":                 dig(c, "status.statusDate"),
			"orgnr":                      c["orgnr"],
			"vatNumber":                  c["vatNumber"],
			"registeredForVAT":           c["registeredForVat"],
			"registeredForPrepaymentTax": c["registeredForPrepayment"],
			"registeredForPayrollTax":    c["registeredForPayrollTax"],
			"registeredForFskatt":        c["fSkatt"],
			"registeredAuthorities":      c["registeredAuthorities"],
		},
		"governance": map[string]any{
			"boardMembers": boardMembers(c["roles"]),
			"signatories":  c["signatoryGroups"],
			"owners":       c["owners"],
		},
		"financialSummary": map[string]any{
			"turnoverRange_SEK": c["estimatedTurnover"],
			"employees":         c["numberOfEmployees"],
			"revenue_SEK":       c["revenue"],
			"profit_SEK":        c["profit"],
			"equity_SEK":        c["equity"],
			"assets_SEK":        c["totalAssets"],
			"liabilities_SEK":   c["totalLiabilities"],
			"profitMargin":      c["profitMargin"],
			"liquidity":         c["liquidity"],
			"solvency":          c["solvency"],
			"cashFlow_SEK":      c["cashFlow"],
			"taxDebt_SEK":       c["taxDebt"],
		},
		"accountingHistory": accountingHistory(c["companyAccounts"]),
		"risks": map[string]any{
			"paymentRemarks":  c["paymentRemarks"],
			"collectionCases": c["collectionCases"],
			"bankruptcies":    c["bankruptcies"],
			"mortgages":       c["mortgages"],
			"encumbrances":    c["encumbrances"],
			"creditRating":    c["creditRating"],
			"riskClass":       c["riskClass"],
		},
		"meta": map[string]any{
			"lastUpdated":  c["lastUpdated"],
			"sourceSystem": c["system"],
			"reportCount":  c["numberOfAnnualReports"],
		},
	}
}

// cleanProfile is the short summary echoed to callers as companyProfile.
func cleanProfile(c map[string]any) map[string]any {
	industries := []string{}
	for _, i := range asSlice(c["industries"]) {
		if m, ok := i.(map[string]any); ok {
			if name, ok := m["name"].(string); ok {
				industries = append(industries, name)
			}
		}
	}
	nace := []string{}
	for _, n := range asSlice(c["naceIndustries"]) {
		if s, ok := n.(string); ok {
			nace = append(nace, s)
		}
	}

	return map[string]any{
		"name":             c["name"],
		"orgNumber":        c["orgnr"],
		"website":          c["homePage"],
		"turnover":         c["revenue"],
		"turnoverRange":    c["estimatedTurnover"],
		"turnoverYear":     c["turnoverYear"],
		"registrationDate": c["registrationDate"],
		"foundationYear":   c["foundationYear"],
		"employees":        c["numberOfEmployees"],
		"industry":         dig(c, "currentIndustry.name"),
		"industries":       industries,
		"naceIndustries":   nace,
		"location": map[string]any{
			"region":       dig(c, "location.countryPart"),
			"county":       dig(c, "location.county"),
			"municipality": dig(c, "location.municipality"),
		},
		"valueProposition":  c["purpose"],
		"businessTypeGuess": guessBusinessType(append(industries, nace...)),
	}
}

func guessBusinessType(industries []string) string {
	text := strings.ToLower(strings.Join(industries, " "))
	for _, k := range b2bKeywords {
		if strings.Contains(text, k) {
			return "B2B"
		}
	}
	return "B2C"
}

func boardMembers(roles any) []map[string]any {
	members := []map[string]any{}
	block, ok := roles.(map[string]any)
	if !ok {
		return members
	}
	for _, g := range asSlice(block["roleGroups"]) {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		for _, r := range asSlice(group["roles"]) {
			role, ok := r.(map[string]any)
			if !ok {
				continue
			}
			members = append(members, map[string]any{
				"name":      role["name"],
				"role":      role["role"],
				"fromDate":  role["fromDate"],
				"birthYear": role["birthYear"],
				"city":      role["city"],
				"country":   role["country"],
			})
		}
	}
	return members
}

func accountingHistory(accounts any) []map[string]any {
	history := []map[string]any{}
	for _, a := range asSlice(accounts) {
		yr, ok := a.(map[string]any)
		if !ok {
			continue
		}
		rows := yr["accounts"]
		if rows == nil {
			rows = []any{}
		}
		history = append(history, map[string]any{
			"year":          yr["year"],
			"period":        yr["period"],
			"lengthMonths":  yr["lengthMonths"],
			"currency":      yr["currency"],
			"consolidated":  yr["isConsolidated"],
			"submittedDate": yr["submittedDate"],
			"accounts":      rows,
		})
	}
	return history
}

// dig follows a dotted path through nested objects, returning nil when any
// step is missing or not an object.
func dig(obj map[string]any, path string) any {
	var cur any = obj
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func firstNonNil(vals ...any) any {
	for _, v := range vals {
		if v != nil && v != "" {
			return v
		}
	}
	return nil
}
