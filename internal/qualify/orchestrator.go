package qualify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/callback"
	"github.com/sells-group/company-qualifier/internal/company"
	"github.com/sells-group/company-qualifier/internal/matching"
	"github.com/sells-group/company-qualifier/internal/model"
)

// Request-level errors. Everything else that goes wrong inside a batch is
// recorded on the affected item.
var (
	ErrValidation       = eris.New("qualify: invalid request")
	ErrDeadlineExceeded = eris.New("qualify: batch deadline exceeded")
)

// State is a batch lifecycle state.
type State string

const (
	StateValidating  State = "validating"
	StateRejected    State = "rejected"
	StateRunning     State = "running"
	StateTimedOut    State = "timed_out"
	StateCancelled   State = "cancelled"
	StateAggregating State = "aggregating"
	StateDelivering  State = "delivering"
	StateDone        State = "done"
)

// BatchRequest asks for a batch of org numbers to be qualified. Blank
// criteria select retrieval-only mode.
type BatchRequest struct {
	OrgNumbers  []string `json:"orgNumbers"`
	Criteria    string   `json:"criteria,omitempty"`
	BatchID     string   `json:"batchId,omitempty"`
	BatchSize   int      `json:"batchSize,omitempty"`
	CallbackURL string   `json:"callbackUrl,omitempty"`
}

// BatchResponse is the finished batch.
type BatchResponse struct {
	BatchID       string                   `json:"batchId"`
	Status        string                   `json:"status"`
	Criteria      string                   `json:"criteria,omitempty"`
	CriteriaInfo  *model.CriteriaInfo      `json:"criteriaInfo,omitempty"`
	RetrievalOnly bool                     `json:"retrievalOnly"`
	Summary       model.BatchSummary       `json:"summary"`
	Results       []model.BatchItemOutcome `json:"results"`
	CompletedAt   time.Time                `json:"completedAt"`
	Callback      *callback.Status         `json:"callback,omitempty"`
}

// Orchestrator runs batch and single-company qualification. It is safe for
// concurrent use; all batches share the matching service's semaphore and
// criteria cache.
type Orchestrator struct {
	provider company.Provider
	matcher  *matching.Service
	sink     callback.Sink
	ctrl     *Controller
	opts     Options
}

// New creates an Orchestrator. sink may be nil when results are never
// delivered by callback.
func New(provider company.Provider, matcher *matching.Service, sink callback.Sink, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		provider: provider,
		matcher:  matcher,
		sink:     sink,
		ctrl:     NewController(matcher.Semaphore(), opts.ChunkPause),
		opts:     opts,
	}
}

// EvaluateBatch qualifies every org number in req and returns the results
// inline. When req or the configuration names a callback URL the response
// is also posted there; delivery failure is recorded in the response and
// never fails the batch.
func (o *Orchestrator) EvaluateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	return o.run(ctx, req, true)
}

// TestEvaluateBatch is EvaluateBatch without callback delivery.
func (o *Orchestrator) TestEvaluateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	return o.run(ctx, req, false)
}

func (o *Orchestrator) validate(req BatchRequest) error {
	switch {
	case len(req.OrgNumbers) == 0:
		return eris.Wrap(ErrValidation, "no organization numbers provided")
	case len(req.OrgNumbers) > o.opts.MaxBatch:
		return eris.Wrapf(ErrValidation, "maximum %d companies per batch", o.opts.MaxBatch)
	case req.BatchSize < 0:
		return eris.Wrap(ErrValidation, "batch size must be positive")
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, req BatchRequest, deliver bool) (*BatchResponse, error) {
	start := time.Now()
	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	log := zap.L().With(zap.String("batch_id", batchID))
	transition := func(s State, fields ...zap.Field) {
		log.Info("qualify: batch "+string(s), append(fields, zap.String("state", string(s)))...)
	}

	transition(StateValidating, zap.Int("companies", len(req.OrgNumbers)))
	if err := o.validate(req); err != nil {
		transition(StateRejected, zap.Error(err))
		return nil, err
	}

	size := req.BatchSize
	if size == 0 {
		size = o.opts.BatchSize
	}

	retrievalOnly := strings.TrimSpace(req.Criteria) == ""
	var info *model.CriteriaInfo
	if !retrievalOnly {
		info = o.matcher.ResolveCriteria(ctx, req.Criteria)
	}

	deadline := o.opts.Deadline(len(req.OrgNumbers))
	transition(StateRunning,
		zap.Int("chunk_size", size),
		zap.Int("chunks", len(ChunkSizes(len(req.OrgNumbers), size))),
		zap.Duration("deadline", deadline),
		zap.Bool("retrieval_only", retrievalOnly),
	)

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	work := func(ctx context.Context, org string) (model.BatchItemOutcome, error) {
		return o.processItem(ctx, org, req.Criteria, info), nil
	}
	fail := func(org string, err error) model.BatchItemOutcome {
		log.Error("qualify: item failed unexpectedly", zap.String("org_number", org), zap.Error(err))
		return model.FailedOutcome(org, "Unexpected error: "+err.Error(), err.Error(), retrievalOnly, nil)
	}

	outcomes, err := Run(runCtx, o.ctrl, req.OrgNumbers, size, work, fail)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			transition(StateTimedOut, zap.Duration("elapsed", time.Since(start)))
			return nil, eris.Wrapf(ErrDeadlineExceeded, "batch of %d companies exceeded %s", len(req.OrgNumbers), deadline)
		}
		transition(StateCancelled, zap.Error(err))
		return nil, eris.Wrap(err, "qualify: batch cancelled")
	}

	transition(StateAggregating)
	summary := model.Summarize(len(req.OrgNumbers), outcomes, time.Since(start))
	resp := &BatchResponse{
		BatchID:       batchID,
		Status:        "completed",
		Criteria:      req.Criteria,
		CriteriaInfo:  info,
		RetrievalOnly: retrievalOnly,
		Summary:       summary,
		Results:       outcomes,
		CompletedAt:   time.Now().UTC(),
	}

	transition(StateDelivering)
	if deliver {
		if url := firstNonEmpty(req.CallbackURL, o.opts.CallbackURL); url != "" && o.sink != nil {
			st := o.sink.Post(context.WithoutCancel(ctx), url, resp)
			resp.Callback = &st
		}
	}

	transition(StateDone,
		zap.Int("successful", summary.SuccessfulEvaluations),
		zap.Int("failed", summary.FailedEvaluations),
		zap.Int("matching", summary.MatchingCompanies),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// processItem retrieves and evaluates one company. Every failure is
// returned as a failed outcome.
func (o *Orchestrator) processItem(ctx context.Context, org, criteria string, info *model.CriteriaInfo) model.BatchItemOutcome {
	start := time.Now()
	retrievalOnly := info == nil
	log := zap.L().With(zap.String("org_number", org))

	fetchCtx, cancelFetch := context.WithTimeout(ctx, o.opts.RetrievalTimeout)
	c, err := o.provider.Fetch(fetchCtx, org, criteria)
	timedOut := timedOutOnly(ctx, fetchCtx)
	cancelFetch()

	switch {
	case err != nil && errors.Is(err, company.ErrNotFound), err == nil && !c.HasData():
		log.Warn("qualify: company data not found", zap.Error(err))
		return model.FailedOutcome(org, "Failed to retrieve company data", "Company data not found", retrievalOnly, nil)
	case err != nil && timedOut:
		secs := int(o.opts.RetrievalTimeout.Seconds())
		log.Warn("qualify: retrieval timed out", zap.Int("timeout_secs", secs))
		return model.FailedOutcome(org,
			fmt.Sprintf("Timeout retrieving company data after %ds", secs),
			fmt.Sprintf("Timeout after %d seconds", secs),
			retrievalOnly, nil)
	case err != nil:
		log.Warn("qualify: retrieval failed", zap.Error(err))
		return model.FailedOutcome(org, "Failed to retrieve company data", err.Error(), retrievalOnly, nil)
	}

	if retrievalOnly {
		return model.RetrievalOnlyOutcome(org, c.Profile, time.Since(start))
	}

	evalCtx, cancelEval := context.WithTimeout(ctx, o.opts.EvaluationTimeout)
	res := o.matcher.Evaluate(evalCtx, info, c.Record)
	timedOut = timedOutOnly(ctx, evalCtx)
	cancelEval()

	if timedOut {
		log.Warn("qualify: evaluation timed out")
		return model.FailedOutcome(org, "Timeout evaluating match criteria", "Match evaluation timeout", false, c.Profile)
	}
	return model.SuccessOutcome(org, res, c.Profile)
}

// timedOutOnly reports whether child hit its own deadline while parent is
// still live.
func timedOutOnly(parent, child context.Context) bool {
	return parent.Err() == nil && errors.Is(child.Err(), context.DeadlineExceeded)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
