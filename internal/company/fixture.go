package company

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/company-qualifier/internal/model"
)

// FixtureProvider serves registry documents from memory. It backs offline
// runs and tests.
type FixtureProvider struct {
	docs map[string]map[string]any
}

// fixtureFile is the on-disk layout. JSON files parse too since YAML is a
// superset.
//
//	companies:
//	  "5566778899":
//	    company:
//	      name: Acme AB
type fixtureFile struct {
	Companies map[string]map[string]any `yaml:"companies"`
}

// NewFixtureProvider serves docs keyed by org number.
func NewFixtureProvider(docs map[string]map[string]any) *FixtureProvider {
	norm := make(map[string]map[string]any, len(docs))
	for org, doc := range docs {
		norm[NormalizeOrgNumber(org)] = doc
	}
	return &FixtureProvider{docs: norm}
}

// LoadFixtures reads a fixture file.
func LoadFixtures(path string) (*FixtureProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "company: read fixtures %s", path)
	}
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "company: parse fixtures %s", path)
	}
	return NewFixtureProvider(f.Companies), nil
}

// Len reports the number of fixture companies.
func (f *FixtureProvider) Len() int { return len(f.docs) }

// Fetch returns the cleaned fixture for orgNumber.
func (f *FixtureProvider) Fetch(ctx context.Context, orgNumber, _ string) (*model.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "company: fetch fixture")
	}
	org := NormalizeOrgNumber(orgNumber)
	doc, ok := f.docs[org]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "company: no fixture for %s", org)
	}
	record, profile := Clean(doc)
	if len(record) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "company: empty fixture for %s", org)
	}
	return &model.Company{OrgNumber: org, Record: record, Profile: profile}, nil
}
