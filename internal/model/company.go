package model

// Company is what the company data provider returns for one org number.
type Company struct {
	OrgNumber string `json:"orgNumber"`

	// Record is the cleaned evaluation record keyed by the AllowedFields
	// sections. It is sent to the completion service in full.
	Record map[string]any `json:"record"`

	// Profile is the opaque company profile echoed back to callers.
	Profile map[string]any `json:"profile"`
}

// HasData reports whether the company carries an evaluable record.
func (c *Company) HasData() bool {
	return c != nil && len(c.Record) > 0
}
