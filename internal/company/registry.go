package company

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/company-qualifier/internal/model"
	"github.com/sells-group/company-qualifier/internal/resilience"
)

// RegistryOptions configures the registry HTTP provider.
type RegistryOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Retry      resilience.RetryConfig
}

// RegistryProvider fetches company documents from the registry API at
// GET {BaseURL}/company/{orgnr}.
type RegistryProvider struct {
	client  *http.Client
	opts    RegistryOptions
	limiter *adaptiveLimiter
}

// NewRegistryProvider creates a RegistryProvider. Zero options take
// defaults: 30s timeout, 5 requests per second.
func NewRegistryProvider(opts RegistryOptions) *RegistryProvider {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "company-qualifier/1.0"
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("registry", "fetch")
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &RegistryProvider{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: newAdaptiveLimiter(rate.Limit(opts.RatePerSec), max(1, int(opts.RatePerSec))),
	}
}

// Fetch retrieves and cleans one company. It returns ErrNotFound for
// unknown org numbers and for documents without company data.
func (p *RegistryProvider) Fetch(ctx context.Context, orgNumber, criteriaHint string) (*model.Company, error) {
	org := NormalizeOrgNumber(orgNumber)
	if org == "" {
		return nil, eris.Wrap(ErrNotFound, "company: empty org number")
	}

	zap.L().Debug("company: fetching from registry",
		zap.String("org_number", org),
		zap.Bool("has_criteria_hint", criteriaHint != ""),
	)

	raw, err := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) (map[string]any, error) {
		return p.get(ctx, org)
	})
	if err != nil {
		return nil, err
	}

	record, profile := Clean(raw)
	if len(record) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "company: empty registry document for %s", org)
	}
	return &model.Company{OrgNumber: org, Record: record, Profile: profile}, nil
}

func (p *RegistryProvider) get(ctx context.Context, org string) (map[string]any, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "company: rate limiter wait")
	}

	endpoint := p.opts.BaseURL + "/company/" + url.PathEscape(org)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "company: create request")
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "company: registry request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "company: %s not in registry", org)
	case resp.StatusCode == http.StatusTooManyRequests:
		p.limiter.OnRateLimit()
		return nil, resilience.NewTransientError(eris.Errorf("company: registry rate limited for %s", org), resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, resilience.ClassifyStatus(
			eris.Errorf("company: registry status %d for %s", resp.StatusCode, org),
			resp.StatusCode,
		)
	}
	p.limiter.OnSuccess()

	body, err := decodedBody(resp)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrapf(err, "company: decode registry document for %s", org)
	}
	return raw, nil
}

// decodedBody transcodes the body to UTF-8 when Content-Type names another
// charset.
func decodedBody(resp *http.Response) (io.Reader, error) {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return resp.Body, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return resp.Body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "company: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(resp.Body), nil
}

// adaptiveLimiter halves its rate on 429 responses and recovers by 20% per
// success, within [initial/4, initial].
type adaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

func newAdaptiveLimiter(r rate.Limit, burst int) *adaptiveLimiter {
	return &adaptiveLimiter{limiter: rate.NewLimiter(r, burst), initial: r, current: r}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *adaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current >= a.initial {
		return
	}
	a.current = min(a.current*1.2, a.initial)
	a.limiter.SetLimit(a.current)
}

func (a *adaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = max(a.current*0.5, a.initial/4)
	a.limiter.SetLimit(a.current)
	zap.L().Warn("company: registry rate limited, reducing rate",
		zap.Float64("new_rate", float64(a.current)),
	)
}

func (a *adaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
