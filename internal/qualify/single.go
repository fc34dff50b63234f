package qualify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/company"
	"github.com/sells-group/company-qualifier/internal/model"
)

// Single-company errors.
var (
	ErrNotFound = eris.New("qualify: company data not found")
	ErrTimeout  = eris.New("qualify: timed out")
)

// SingleResult is the evaluation of one company.
type SingleResult struct {
	OrgNumber      string              `json:"orgNumber"`
	Criteria       string              `json:"criteria"`
	CriteriaInfo   *model.CriteriaInfo `json:"criteriaInfo"`
	Result         model.MatchResult   `json:"result"`
	CompanyProfile map[string]any      `json:"companyProfile"`
	EvaluatedAt    time.Time           `json:"evaluatedAt"`
}

// EvaluateSingle retrieves and evaluates one company. It holds a slot of
// the shared semaphore while it runs.
func (o *Orchestrator) EvaluateSingle(ctx context.Context, orgNumber, criteria string) (*SingleResult, error) {
	orgNumber = strings.TrimSpace(orgNumber)
	if orgNumber == "" {
		return nil, eris.Wrap(ErrValidation, "organization number is required")
	}
	if strings.TrimSpace(criteria) == "" {
		return nil, eris.Wrap(ErrValidation, "criteria is required")
	}

	sem := o.matcher.Semaphore()
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, eris.Wrap(err, "qualify: waiting for a worker slot")
	}
	defer sem.Release(1)

	log := zap.L().With(zap.String("org_number", orgNumber))

	fetchCtx, cancelFetch := context.WithTimeout(ctx, o.opts.RetrievalTimeout)
	c, err := o.provider.Fetch(fetchCtx, orgNumber, criteria)
	timedOut := timedOutOnly(ctx, fetchCtx)
	cancelFetch()
	switch {
	case err != nil && errors.Is(err, company.ErrNotFound), err == nil && !c.HasData():
		return nil, eris.Wrapf(ErrNotFound, "org number %s", orgNumber)
	case err != nil && timedOut:
		return nil, eris.Wrapf(ErrTimeout, "retrieving company data after %s", o.opts.RetrievalTimeout)
	case err != nil:
		return nil, eris.Wrap(err, "qualify: retrieve company data")
	}

	info := o.matcher.ResolveCriteria(ctx, criteria)

	evalCtx, cancelEval := context.WithTimeout(ctx, o.opts.EvaluationTimeout)
	res := o.matcher.Evaluate(evalCtx, info, c.Record)
	timedOut = timedOutOnly(ctx, evalCtx)
	cancelEval()
	if timedOut {
		return nil, eris.Wrapf(ErrTimeout, "evaluating match criteria after %s", o.opts.EvaluationTimeout)
	}

	log.Info("qualify: company evaluated",
		zap.Int("match_score", res.MatchScore),
		zap.Float64("confidence", res.Confidence),
	)
	return &SingleResult{
		OrgNumber:      orgNumber,
		Criteria:       criteria,
		CriteriaInfo:   info,
		Result:         res,
		CompanyProfile: c.Profile,
		EvaluatedAt:    time.Now().UTC(),
	}, nil
}

// Interpret exposes the shared criteria interpreter.
func (o *Orchestrator) Interpret(ctx context.Context, criteria string) (*model.CriteriaInfo, error) {
	return o.matcher.Interpreter().Interpret(ctx, criteria)
}
