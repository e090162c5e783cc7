package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/stealthee/radar-cli/internal/alert"
	"github.com/stealthee/radar-cli/internal/enrich"
	"github.com/stealthee/radar-cli/internal/pipeline"
	"github.com/stealthee/radar-cli/internal/score"
	"github.com/stealthee/radar-cli/internal/store"
	anthropicpkg "github.com/stealthee/radar-cli/pkg/anthropic"
	"github.com/stealthee/radar-cli/pkg/nimble"
	"github.com/stealthee/radar-cli/pkg/slackhook"
	"github.com/stealthee/radar-cli/pkg/tavily"
)

// pipelineEnv bundles the coordinator with the resources it owns.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

// initPipeline wires the full detection pipeline from configuration.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var search tavily.Client
	if cfg.Tavily.Key != "" {
		search = tavily.NewClient(cfg.Tavily.Key, tavily.WithBaseURL(cfg.Tavily.BaseURL))
	}

	fetcher := enrich.NewHTTPFetcher(cfg.Pipeline.FetchRatePerSec)
	parser := nimble.NewClient(cfg.Nimble.Key, nimble.WithBaseURL(cfg.Nimble.BaseURL))
	stage := enrich.NewStage(fetcher, parser, cfg.Pipeline.ExcerptChars)

	scorer := score.NewScorer(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)

	var notifier slackhook.Notifier
	if cfg.Slack.WebhookURL != "" {
		notifier = slackhook.NewClient(cfg.Slack.WebhookURL)
	}
	alerts := alert.NewDispatcher(cfg.Pipeline.AlertThreshold, notifier)

	p := pipeline.New(search, stage, scorer, st, alerts, pipeline.Config{
		MaxCandidates:  cfg.Pipeline.MaxCandidates,
		DefaultResults: cfg.Pipeline.DefaultResults,
		AllowedDomains: cfg.Pipeline.AllowedDomains,
		SearchDomains:  cfg.Pipeline.SearchDomains,
		HighLikelihood: cfg.Pipeline.HighLikelihood,
	})

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
