package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/callback"
	"github.com/sells-group/company-qualifier/internal/company"
	"github.com/sells-group/company-qualifier/internal/completion"
	"github.com/sells-group/company-qualifier/internal/config"
	"github.com/sells-group/company-qualifier/internal/matching"
	"github.com/sells-group/company-qualifier/internal/qualify"
	"github.com/sells-group/company-qualifier/internal/resilience"
	anthropicpkg "github.com/sells-group/company-qualifier/pkg/anthropic"
)

// qualifierEnv holds the wired services shared by every command.
type qualifierEnv struct {
	Matcher      *matching.Service
	Provider     company.Provider
	Orchestrator *qualify.Orchestrator
}

// initQualifier validates cfg for mode and builds the completion client,
// company provider, matching service and orchestrator.
func initQualifier(c *config.Config, mode string) (*qualifierEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	ai := anthropicpkg.NewClient(c.Anthropic.Key)
	svc := completion.NewAnthropicService(ai, c.Anthropic.Model, c.Anthropic.MaxTokens, c.Anthropic.Temperature)
	retry := resilience.FromSettings(c.Match.MaxRetries, c.Match.InitialBackoffMs, c.Match.RetryBudgetSecs, c.Match.TimeoutSecs)
	matcher := matching.NewService(completion.NewClient(svc, retry), c.Match.MaxConcurrent)

	provider, err := initProvider(c)
	if err != nil {
		return nil, err
	}

	opts := qualify.DefaultOptions()
	opts.BatchSize = c.Match.BatchSize
	opts.CallbackURL = c.Callback.URL
	sink := callback.NewHTTPSink(time.Duration(c.Callback.TimeoutSecs) * time.Second)

	zap.L().Info("qualifier initialized",
		zap.String("model", c.Anthropic.Model),
		zap.Int("max_concurrent", matcher.Capacity()),
		zap.Int("batch_size", opts.BatchSize),
		zap.Bool("fixtures", c.Registry.FixturePath != ""),
	)

	return &qualifierEnv{
		Matcher:      matcher,
		Provider:     provider,
		Orchestrator: qualify.New(provider, matcher, sink, opts),
	}, nil
}

func initProvider(c *config.Config) (company.Provider, error) {
	if c.Registry.FixturePath != "" {
		fp, err := company.LoadFixtures(c.Registry.FixturePath)
		if err != nil {
			return nil, eris.Wrap(err, "load fixtures")
		}
		return fp, nil
	}
	return company.NewRegistryProvider(company.RegistryOptions{
		BaseURL:    c.Registry.BaseURL,
		UserAgent:  c.Registry.UserAgent,
		Timeout:    time.Duration(c.Registry.TimeoutSecs) * time.Second,
		RatePerSec: c.Registry.RatePerSec,
		Retry:      resilience.FromSettings(c.Match.MaxRetries, c.Match.InitialBackoffMs, c.Match.RetryBudgetSecs, 0),
	}), nil
}
