// Package company retrieves and cleans company records from the business
// registry.
package company

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-qualifier/internal/model"
)

// ErrNotFound is returned when the registry has no usable record for an
// org number.
var ErrNotFound = eris.New("company: not found")

// Provider fetches one company. The criteria hint is advisory and may be
// empty.
type Provider interface {
	Fetch(ctx context.Context, orgNumber, criteriaHint string) (*model.Company, error)
}

// NormalizeOrgNumber strips whitespace and dashes: "556677-8899" becomes
// "5566778899".
func NormalizeOrgNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, s)
}
