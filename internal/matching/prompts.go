package matching

import (
	"fmt"
	"strings"

	"github.com/sells-group/company-qualifier/internal/model"
)

// interpretSystemPrompt lists the allowed fields in vocabulary order.
var interpretSystemPrompt = fmt.Sprintf(`You are an expert in analyzing business and investment criteria and mapping them to a fixed schema of company data.

Allowed fields. You may ONLY choose from these:
%s

Task: read the criteria and list which of these fields are required to decide whether a company meets it.

Output format (strict JSON only):
{
  "summary": "short summary text",
  "required_fields": ["field1", "field2"]
}

Rules:
- Only output fields directly required by the criteria
- Never output fields outside the allowed list
- Do not infer beyond what the criteria explicitly needs
- Respond with valid JSON only`, bulletList(model.AllowedFields))

const evaluateSystemPrompt = `You are an expert company evaluator.

Analyze the company against the criteria and return a JSON object with these exact fields:
- match_score: integer from 0-100 (higher = better match)
- reason: string explanation with specific evidence from the company data
- confidence: decimal number from 0.0 to 1.0, not text like "high" or "low"
- matched_keywords: array of strings (criteria keywords found in the company data)
- unmatched_keywords: array of strings (criteria keywords that were missing)

All fields must be present. Return only valid JSON.`

func interpretUserPrompt(criteria string) string {
	return fmt.Sprintf(`Analyze the following criteria and identify:
1. A short summary
2. Which of the allowed fields are required to evaluate it

Criteria:
"""%s"""`, criteria)
}

func evaluateUserPrompt(criteriaJSON, companyJSON []byte) string {
	return fmt.Sprintf(`CRITERIA (JSON):
%s

COMPANY DATA (JSON):
%s

Evaluate and return JSON with the required fields.`, criteriaJSON, companyJSON)
}

func bulletList(items []string) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(it)
	}
	return sb.String()
}
