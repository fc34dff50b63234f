package qualify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/company-qualifier/internal/callback"
	"github.com/sells-group/company-qualifier/internal/company"
	"github.com/sells-group/company-qualifier/internal/matching"
	"github.com/sells-group/company-qualifier/internal/model"
)

const criteriaJSON = `{"summary": "Software companies", "required_fields": ["industry", "location"]}`

// fakeCompleter answers interpretation prompts with criteriaJSON and scores
// companies named "Match ..." 90 and everything else 20.
type fakeCompleter struct {
	calls    atomic.Int32
	evaluate func(ctx context.Context, user string) (string, error)
}

func (f *fakeCompleter) Call(ctx context.Context, system, user string) (string, error) {
	f.calls.Add(1)
	if strings.Contains(system, "required_fields") {
		return criteriaJSON, nil
	}
	if f.evaluate != nil {
		return f.evaluate(ctx, user)
	}
	if strings.Contains(user, `"Match `) {
		return `{"match_score": 90, "confidence": 0.9, "reason": "fits", "matched_keywords": ["software"]}`, nil
	}
	return `{"match_score": 20, "confidence": 0.8, "reason": "wrong industry"}`, nil
}

type fakeProvider struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	fetch    func(ctx context.Context, org string) (*model.Company, error)
}

func (f *fakeProvider) Fetch(ctx context.Context, org, _ string) (*model.Company, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.fetch != nil {
		return f.fetch(ctx, org)
	}
	return testCompany(org, "Company "+org), nil
}

func testCompany(org, name string) *model.Company {
	return &model.Company{
		OrgNumber: org,
		Record:    map[string]any{"name": name, "orgnr": org},
		Profile:   map[string]any{"companyName": name},
	}
}

type fakeSink struct {
	mu     sync.Mutex
	urls   []string
	status callback.Status
}

func (f *fakeSink) Post(_ context.Context, url string, _ any) callback.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	st := f.status
	st.URL = url
	return st
}

func (f *fakeSink) posted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func testOptions() Options {
	return Options{BatchSize: 5, ChunkPause: 0}
}

func orgNumbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("55660000%02d", i)
	}
	return out
}

func TestEvaluateBatch_RejectsInvalidSizes(t *testing.T) {
	tests := []struct {
		name string
		orgs []string
	}{
		{"empty", nil},
		{"over limit", orgNumbers(101)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeCompleter{}
			prov := &fakeProvider{}
			sink := &fakeSink{}
			o := New(prov, matching.NewService(llm, 4), sink, testOptions())

			resp, err := o.EvaluateBatch(context.Background(), BatchRequest{
				OrgNumbers:  tt.orgs,
				Criteria:    "software",
				CallbackURL: "http://example.invalid/hook",
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Nil(t, resp)
			assert.Zero(t, llm.calls.Load())
			assert.Zero(t, prov.calls.Load())
			assert.Empty(t, sink.posted())
		})
	}
}

func TestEvaluateBatch_AcceptsLimit(t *testing.T) {
	o := New(&fakeProvider{}, matching.NewService(&fakeCompleter{}, 10), nil, Options{BatchSize: 20})
	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(100)})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 100)
}

func TestEvaluateBatch_PreservesInputOrder(t *testing.T) {
	orgs := orgNumbers(12)
	prov := &fakeProvider{fetch: func(_ context.Context, org string) (*model.Company, error) {
		// Later items finish first inside each chunk.
		idx := int(org[len(org)-1] - '0')
		time.Sleep(time.Duration(10-idx) * time.Millisecond)
		name := "Company " + org
		if idx%2 == 0 {
			name = "Match " + org
		}
		return testCompany(org, name), nil
	}}
	o := New(prov, matching.NewService(&fakeCompleter{}, 10), nil, testOptions())

	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgs, Criteria: "software"})
	require.NoError(t, err)
	require.Len(t, resp.Results, len(orgs))
	for i, r := range resp.Results {
		assert.Equal(t, orgs[i], r.OrgNumber, "position %d", i)
		assert.Equal(t, model.ItemSuccess, r.Status)
	}

	assert.Equal(t, 12, resp.Summary.TotalCompanies)
	assert.Equal(t, 12, resp.Summary.ProcessedCompanies)
	assert.Equal(t, 12, resp.Summary.SuccessfulEvaluations)
	assert.Equal(t, 0, resp.Summary.FailedEvaluations)
	assert.Equal(t, 6, resp.Summary.MatchingCompanies)
	assert.Equal(t, "50.0%", resp.Summary.MatchRate)
	assert.False(t, resp.RetrievalOnly)
	require.NotNil(t, resp.CriteriaInfo)
	assert.Equal(t, []string{"industry", "location"}, resp.CriteriaInfo.RequiredFields)
	assert.Equal(t, "completed", resp.Status)
}

func TestEvaluateBatch_InterpretsCriteriaOnce(t *testing.T) {
	var interpretations atomic.Int32
	llm := &countingInterpretations{fakeCompleter: &fakeCompleter{}, n: &interpretations}
	o := New(&fakeProvider{}, matching.NewService(llm, 10), nil, testOptions())

	_, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(7), Criteria: "software"})
	require.NoError(t, err)
	_, err = o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(3), Criteria: "software"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), interpretations.Load())
}

type countingInterpretations struct {
	*fakeCompleter
	n *atomic.Int32
}

func (c *countingInterpretations) Call(ctx context.Context, system, user string) (string, error) {
	if strings.Contains(system, "required_fields") {
		c.n.Add(1)
	}
	return c.fakeCompleter.Call(ctx, system, user)
}

func TestEvaluateBatch_RetrievalOnly(t *testing.T) {
	llm := &fakeCompleter{}
	o := New(&fakeProvider{}, matching.NewService(llm, 4), nil, testOptions())

	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(3), Criteria: "   "})
	require.NoError(t, err)
	assert.True(t, resp.RetrievalOnly)
	assert.Nil(t, resp.CriteriaInfo)
	assert.Zero(t, llm.calls.Load())
	for _, r := range resp.Results {
		assert.Equal(t, model.ItemSuccess, r.Status)
		require.NotNil(t, r.IsMatch)
		assert.True(t, *r.IsMatch)
		assert.Nil(t, r.MatchScore)
		assert.Nil(t, r.Confidence)
		assert.NotEmpty(t, r.CompanyProfile)
	}
}

func TestEvaluateBatch_ItemFailuresAreIsolated(t *testing.T) {
	orgs := orgNumbers(5)
	prov := &fakeProvider{fetch: func(ctx context.Context, org string) (*model.Company, error) {
		switch org {
		case orgs[1]:
			return nil, wrapFetch(company.ErrNotFound)
		case orgs[2]:
			panic("boom")
		case orgs[3]:
			<-ctx.Done()
			return nil, ctx.Err()
		case orgs[4]:
			return nil, errors.New("registry unavailable")
		}
		return testCompany(org, "Match "+org), nil
	}}
	opts := testOptions()
	opts.RetrievalTimeout = 30 * time.Millisecond
	o := New(prov, matching.NewService(&fakeCompleter{}, 5), nil, opts)

	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgs, Criteria: "software"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 5)

	ok := resp.Results[0]
	assert.Equal(t, model.ItemSuccess, ok.Status)
	assert.True(t, *ok.IsMatch)
	assert.Equal(t, 90, *ok.MatchScore)

	notFound := resp.Results[1]
	assert.Equal(t, model.ItemFailed, notFound.Status)
	assert.Equal(t, "Company data not found", *notFound.Error)
	assert.Equal(t, "Failed to retrieve company data", notFound.Reason)

	panicked := resp.Results[2]
	assert.Equal(t, model.ItemFailed, panicked.Status)
	assert.Contains(t, *panicked.Error, "boom")
	assert.True(t, strings.HasPrefix(panicked.Reason, "Unexpected error: "))
	assert.False(t, *panicked.IsMatch)
	assert.Equal(t, 0, *panicked.MatchScore)

	timedOut := resp.Results[3]
	assert.Equal(t, model.ItemFailed, timedOut.Status)
	assert.Equal(t, "Timeout after 0 seconds", *timedOut.Error)
	assert.Equal(t, "Timeout retrieving company data after 0s", timedOut.Reason)

	broken := resp.Results[4]
	assert.Equal(t, model.ItemFailed, broken.Status)
	assert.Equal(t, "registry unavailable", *broken.Error)

	assert.Equal(t, 1, resp.Summary.SuccessfulEvaluations)
	assert.Equal(t, 4, resp.Summary.FailedEvaluations)
	assert.Equal(t, 1, resp.Summary.MatchingCompanies)
}

// wrapFetch wraps err the way a registry client would.
func wrapFetch(err error) error {
	return fmt.Errorf("company: fetch: %w", err)
}

func TestEvaluateBatch_EmptyRecordIsNotFound(t *testing.T) {
	prov := &fakeProvider{fetch: func(_ context.Context, org string) (*model.Company, error) {
		return &model.Company{OrgNumber: org}, nil
	}}
	o := New(prov, matching.NewService(&fakeCompleter{}, 2), nil, testOptions())

	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(1), Criteria: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Company data not found", *resp.Results[0].Error)
}

func TestEvaluateBatch_EvaluationTimeout(t *testing.T) {
	llm := &fakeCompleter{evaluate: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	opts := testOptions()
	opts.EvaluationTimeout = 20 * time.Millisecond
	o := New(&fakeProvider{}, matching.NewService(llm, 2), nil, opts)

	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(2), Criteria: "software"})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Equal(t, model.ItemFailed, r.Status)
		assert.Equal(t, "Match evaluation timeout", *r.Error)
		assert.Equal(t, "Timeout evaluating match criteria", r.Reason)
		assert.NotEmpty(t, r.CompanyProfile)
	}
}

func TestEvaluateBatch_EvaluationErrorIsZeroMatch(t *testing.T) {
	llm := &fakeCompleter{evaluate: func(context.Context, string) (string, error) {
		return "", errors.New("provider down")
	}}
	o := New(&fakeProvider{}, matching.NewService(llm, 2), nil, testOptions())

	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(1), Criteria: "software"})
	require.NoError(t, err)
	r := resp.Results[0]
	assert.Equal(t, model.ItemSuccess, r.Status)
	assert.False(t, *r.IsMatch)
	assert.Equal(t, 0, *r.MatchScore)
	assert.Contains(t, r.Reason, "Evaluation failed")
}

func TestEvaluateBatch_OverallDeadline(t *testing.T) {
	prov := &fakeProvider{fetch: func(ctx context.Context, _ string) (*model.Company, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	opts := testOptions()
	opts.PerCompany = 10 * time.Millisecond
	opts.MinDeadline = 10 * time.Millisecond
	opts.MaxDeadline = 40 * time.Millisecond
	o := New(prov, matching.NewService(&fakeCompleter{}, 4), nil, opts)

	start := time.Now()
	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(8), Criteria: "software"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeadlineExceeded))
	assert.Nil(t, resp)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEvaluateBatch_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prov := &fakeProvider{fetch: func(ctx context.Context, org string) (*model.Company, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	o := New(prov, matching.NewService(&fakeCompleter{}, 4), nil, testOptions())

	_, err := o.TestEvaluateBatch(ctx, BatchRequest{OrgNumbers: orgNumbers(3)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrDeadlineExceeded))
}

func TestEvaluateBatch_CallbackDelivery(t *testing.T) {
	tests := []struct {
		name       string
		requestURL string
		defaultURL string
		want       []string
	}{
		{"request url", "http://hooks.test/a", "", []string{"http://hooks.test/a"}},
		{"configured default", "", "http://hooks.test/default", []string{"http://hooks.test/default"}},
		{"request overrides default", "http://hooks.test/a", "http://hooks.test/default", []string{"http://hooks.test/a"}},
		{"none", "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{status: callback.Status{Delivered: true, StatusCode: 200}}
			opts := testOptions()
			opts.CallbackURL = tt.defaultURL
			o := New(&fakeProvider{}, matching.NewService(&fakeCompleter{}, 2), sink, opts)

			resp, err := o.EvaluateBatch(context.Background(), BatchRequest{
				OrgNumbers:  orgNumbers(2),
				Criteria:    "software",
				CallbackURL: tt.requestURL,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sink.posted())
			if tt.want == nil {
				assert.Nil(t, resp.Callback)
				return
			}
			require.NotNil(t, resp.Callback)
			assert.True(t, resp.Callback.Delivered)
			assert.Equal(t, tt.want[0], resp.Callback.URL)
		})
	}
}

func TestEvaluateBatch_CallbackFailureDoesNotFailBatch(t *testing.T) {
	sink := &fakeSink{status: callback.Status{Delivered: false, StatusCode: 500, Error: "callback returned 500"}}
	o := New(&fakeProvider{}, matching.NewService(&fakeCompleter{}, 2), sink, testOptions())

	resp, err := o.EvaluateBatch(context.Background(), BatchRequest{
		OrgNumbers:  orgNumbers(3),
		Criteria:    "software",
		CallbackURL: "http://hooks.test/fail",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Callback)
	assert.False(t, resp.Callback.Delivered)
	assert.Equal(t, "callback returned 500", resp.Callback.Error)
	assert.Len(t, resp.Results, 3)
}

func TestTestEvaluateBatch_NeverCallsSink(t *testing.T) {
	sink := &fakeSink{}
	opts := testOptions()
	opts.CallbackURL = "http://hooks.test/default"
	o := New(&fakeProvider{}, matching.NewService(&fakeCompleter{}, 2), sink, opts)

	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{
		OrgNumbers:  orgNumbers(2),
		Criteria:    "software",
		CallbackURL: "http://hooks.test/a",
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Callback)
	assert.Empty(t, sink.posted())
}

func TestEvaluateBatch_BatchID(t *testing.T) {
	o := New(&fakeProvider{}, matching.NewService(&fakeCompleter{}, 2), nil, testOptions())

	resp, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(1), BatchID: "batch-7"})
	require.NoError(t, err)
	assert.Equal(t, "batch-7", resp.BatchID)

	resp, err = o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(1)})
	require.NoError(t, err)
	_, err = uuid.Parse(resp.BatchID)
	assert.NoError(t, err)
}

func TestEvaluateBatch_SharedSemaphoreBoundsConcurrency(t *testing.T) {
	prov := &fakeProvider{fetch: func(_ context.Context, org string) (*model.Company, error) {
		time.Sleep(15 * time.Millisecond)
		return testCompany(org, "Company "+org), nil
	}}
	svc := matching.NewService(&fakeCompleter{}, 3)
	opts := Options{BatchSize: 10}
	a := New(prov, svc, nil, opts)
	b := New(prov, svc, nil, opts)

	var wg sync.WaitGroup
	for _, o := range []*Orchestrator{a, b, a} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.TestEvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(10), Criteria: "software"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(30), prov.calls.Load())
	assert.LessOrEqual(t, prov.peak.Load(), int32(3))
}

func TestEvaluateBatch_LogsStateTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	o := New(&fakeProvider{}, matching.NewService(&fakeCompleter{}, 2), &fakeSink{}, testOptions())
	_, err := o.EvaluateBatch(context.Background(), BatchRequest{OrgNumbers: orgNumbers(2), BatchID: "b1"})
	require.NoError(t, err)
	_, err = o.EvaluateBatch(context.Background(), BatchRequest{BatchID: "b2"})
	require.Error(t, err)

	states := map[string][]string{}
	for _, e := range logs.All() {
		ctx := e.ContextMap()
		if s, ok := ctx["state"].(string); ok {
			id, _ := ctx["batch_id"].(string)
			states[id] = append(states[id], s)
		}
	}
	assert.Equal(t, []string{"validating", "running", "aggregating", "delivering", "done"}, states["b1"])
	assert.Equal(t, []string{"validating", "rejected"}, states["b2"])
}

func TestEvaluateSingle(t *testing.T) {
	prov := &fakeProvider{fetch: func(ctx context.Context, org string) (*model.Company, error) {
		switch org {
		case "missing":
			return nil, fmt.Errorf("wrapped: %w", company.ErrNotFound)
		case "slow":
			<-ctx.Done()
			return nil, ctx.Err()
		case "broken":
			return nil, errors.New("registry unavailable")
		}
		return testCompany(org, "Match "+org), nil
	}}
	opts := testOptions()
	opts.RetrievalTimeout = 20 * time.Millisecond
	o := New(prov, matching.NewService(&fakeCompleter{}, 2), nil, opts)
	ctx := context.Background()

	res, err := o.EvaluateSingle(ctx, " 5566778899 ", "software")
	require.NoError(t, err)
	assert.Equal(t, "5566778899", res.OrgNumber)
	assert.Equal(t, 90, res.Result.MatchScore)
	assert.True(t, res.Result.IsMatch())
	assert.NotEmpty(t, res.CompanyProfile)
	require.NotNil(t, res.CriteriaInfo)

	_, err = o.EvaluateSingle(ctx, "", "software")
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = o.EvaluateSingle(ctx, "5566778899", " ")
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = o.EvaluateSingle(ctx, "missing", "software")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = o.EvaluateSingle(ctx, "slow", "software")
	assert.True(t, errors.Is(err, ErrTimeout))

	_, err = o.EvaluateSingle(ctx, "broken", "software")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Contains(t, err.Error(), "registry unavailable")
}

func TestEvaluateSingle_EvaluationTimeout(t *testing.T) {
	llm := &fakeCompleter{evaluate: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	opts := testOptions()
	opts.EvaluationTimeout = 20 * time.Millisecond
	o := New(&fakeProvider{}, matching.NewService(llm, 1), nil, opts)

	_, err := o.EvaluateSingle(context.Background(), "5566778899", "software")
	assert.True(t, errors.Is(err, ErrTimeout))
}
