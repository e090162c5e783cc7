// Package pipeline coordinates the detection run: search, URL candidate
// extraction, enrichment, batch scoring, persistence, alerting, and report
// assembly. Stages exchange typed records; empty intermediate results abort
// the run with a distinct message instead of cascading.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stealthee/radar-cli/internal/alert"
	"github.com/stealthee/radar-cli/internal/enrich"
	"github.com/stealthee/radar-cli/internal/extract"
	"github.com/stealthee/radar-cli/internal/model"
	"github.com/stealthee/radar-cli/internal/registry"
	"github.com/stealthee/radar-cli/internal/score"
	"github.com/stealthee/radar-cli/internal/store"
	"github.com/stealthee/radar-cli/pkg/tavily"
)

// State is the coordinator's current stage.
type State string

const (
	StateSearching      State = "searching"
	StateExtractingURLs State = "extracting_urls"
	StateEnriching      State = "enriching"
	StateScoring        State = "scoring"
	StateInterpreting   State = "interpreting"
	StateDone           State = "done"
	StateAborted        State = "aborted"
)

// Abort messages, one per empty-state gate.
const (
	abortEmptyQuery    = "query must not be empty"
	abortNoCredential  = "search is not configured: set the Tavily API key"
	abortNoResults     = "search returned no results for the query"
	abortNoCandidates  = "no candidate URLs found on monitored publications"
	abortNoneEnriched  = "no candidate URL could be enriched"
	abortNothingScored = "scoring response contained no decodable analysis blocks"
)

// Request describes one pipeline run.
type Request struct {
	Query        string
	NumResults   int
	TargetFields []registry.Field
}

// Report is the run outcome handed back to the caller. Blocks are rendered
// in fixed order: header, per-signal details, raw scoring output, summary.
type Report struct {
	RunID   string
	State   State
	Message string
	Summary model.RunSummary
	Blocks  []string
}

// Render flattens the report for terminal output.
func (r *Report) Render() string {
	if r.State == StateAborted {
		return fmt.Sprintf("Run aborted: %s", r.Message)
	}
	return strings.Join(r.Blocks, "\n\n")
}

// Config carries the coordinator's tunables, resolved from configuration.
type Config struct {
	MaxCandidates  int
	DefaultResults int
	AllowedDomains []string
	SearchDomains  []string
	HighLikelihood float64
}

// Pipeline wires the stages together.
type Pipeline struct {
	search   tavily.Client
	enricher *enrich.Stage
	scorer   *score.Scorer
	store    store.Store
	alerts   *alert.Dispatcher
	cfg      Config
}

// New creates a coordinator. A nil search client means the search credential
// is not configured; runs abort at the first gate.
func New(search tavily.Client, enricher *enrich.Stage, scorer *score.Scorer, st store.Store, alerts *alert.Dispatcher, cfg Config) *Pipeline {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	if cfg.DefaultResults <= 0 {
		cfg.DefaultResults = 5
	}
	if cfg.HighLikelihood <= 0 {
		cfg.HighLikelihood = 0.70
	}
	return &Pipeline{
		search:   search,
		enricher: enricher,
		scorer:   scorer,
		store:    st,
		alerts:   alerts,
		cfg:      cfg,
	}
}

// Run executes the full pipeline for one query. Aborts return a Report with
// the gate's message and a nil error; only infrastructure faults (search
// transport, scorer transport, run-record creation) return an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	log := zap.L().With(zap.String("query", req.Query))

	if strings.TrimSpace(req.Query) == "" {
		return p.abort(ctx, nil, abortEmptyQuery), nil
	}
	if p.search == nil {
		return p.abort(ctx, nil, abortNoCredential), nil
	}

	fields := req.TargetFields
	if len(fields) == 0 {
		fields = registry.Defaults()
	}
	fieldNames := registry.Names(fields)

	run, err := p.store.CreateRun(ctx, req.Query)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run record")
	}
	log = log.With(zap.String("run_id", run.ID))

	log.Info("stage", zap.String("state", string(StateSearching)))
	numResults := req.NumResults
	if numResults <= 0 {
		numResults = p.cfg.DefaultResults
	}
	searchResp, err := p.search.Search(ctx, tavily.SearchRequest{
		Query:          req.Query,
		MaxResults:     numResults,
		IncludeDomains: p.cfg.SearchDomains,
	})
	if err != nil {
		p.failRun(ctx, run.ID, err)
		return nil, eris.Wrap(err, "pipeline: search")
	}
	if len(searchResp.Results) == 0 {
		return p.abort(ctx, run, abortNoResults), nil
	}
	hits := make([]model.SearchHit, len(searchResp.Results))
	for i, res := range searchResp.Results {
		hits[i] = model.SearchHit{Title: res.Title, URL: res.URL, Snippet: res.Content}
	}
	log.Info("search complete", zap.Int("results", len(hits)))

	log.Info("stage", zap.String("state", string(StateExtractingURLs)))
	var corpus strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&corpus, "%s\n%s\n%s\n", hit.Title, hit.URL, hit.Snippet)
	}
	urls := extract.URLs(corpus.String(), p.cfg.AllowedDomains, p.cfg.MaxCandidates)
	if len(urls) == 0 {
		return p.abort(ctx, run, abortNoCandidates), nil
	}
	// Enrichment is bounded by the caller's requested result count, not just
	// the extractor's cap.
	if len(urls) > numResults {
		urls = urls[:numResults]
	}
	log.Info("candidates extracted", zap.Int("urls", len(urls)))

	log.Info("stage", zap.String("state", string(StateEnriching)))
	signals, err := p.enricher.Run(ctx, urls, fieldNames)
	if err != nil {
		if eris.Is(err, enrich.ErrNoSignals) {
			return p.abort(ctx, run, abortNoneEnriched), nil
		}
		p.failRun(ctx, run.ID, err)
		return nil, eris.Wrap(err, "pipeline: enrich")
	}

	log.Info("stage", zap.String("state", string(StateScoring)))
	scored, rawBlocks, err := p.scorer.ScoreBatch(ctx, signals)
	if err != nil {
		p.failRun(ctx, run.ID, err)
		return nil, eris.Wrap(err, "pipeline: score")
	}
	if len(scored) == 0 {
		return p.abort(ctx, run, abortNothingScored), nil
	}

	// Persist then alert, per decoded signal, in order.
	log.Info("stage", zap.String("state", string(StateInterpreting)))
	summary := model.RunSummary{
		Query:           req.Query,
		CandidateURLs:   len(urls),
		SignalsEnriched: len(signals),
		SignalsScored:   len(scored),
	}
	scoreByID := make(map[int]model.ScoredSignal, len(scored))
	for _, sc := range scored {
		sig := signals[sc.SignalID]
		scoreByID[sc.SignalID] = sc

		_, err := p.store.InsertSignal(ctx, run.ID, &model.StoredRecord{
			URL:        sig.SourceURL,
			Title:      sig.Title,
			Excerpt:    sig.Excerpt,
			Fields:     sig.Fields,
			Likelihood: sc.Likelihood,
			Confidence: sc.Confidence,
			Reasoning:  sc.Reasoning,
		})
		if err != nil {
			log.Warn("signal not persisted",
				zap.String("url", sig.SourceURL),
				zap.Error(err),
			)
		} else {
			summary.SignalsStored++
		}

		if p.alerts.MaybeAlert(ctx, model.AlertEvent{
			Title:  sig.Title,
			Score:  sc.Likelihood,
			URL:    sig.SourceURL,
			Fields: sig.Fields,
		}) {
			summary.AlertsDispatched++
		}
	}

	if err := p.store.CompleteRun(ctx, run.ID, &summary); err != nil {
		log.Warn("run record not completed", zap.Error(err))
	}
	log.Info("run complete",
		zap.Int("stored", summary.SignalsStored),
		zap.Int("alerts", summary.AlertsDispatched),
	)

	return &Report{
		RunID:   run.ID,
		State:   StateDone,
		Summary: summary,
		Blocks:  buildBlocks(req.Query, fieldNames, signals, scored, scoreByID, rawBlocks, summary, p.cfg.HighLikelihood),
	}, nil
}

// abort marks the run record aborted and returns the gate's report. Called
// with a nil run when the gate fires before the record exists.
func (p *Pipeline) abort(ctx context.Context, run *model.Run, msg string) *Report {
	report := &Report{State: StateAborted, Message: msg}
	if run == nil {
		return report
	}
	report.RunID = run.ID
	if err := p.store.FailRun(ctx, run.ID, model.RunStatusAborted, msg); err != nil {
		zap.L().Warn("run record not marked aborted", zap.String("run_id", run.ID), zap.Error(err))
	}
	zap.L().Info("run aborted", zap.String("run_id", run.ID), zap.String("reason", msg))
	return report
}

func (p *Pipeline) failRun(ctx context.Context, runID string, cause error) {
	if err := p.store.FailRun(ctx, runID, model.RunStatusFailed, cause.Error()); err != nil {
		zap.L().Warn("run record not marked failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// buildBlocks assembles the report in fixed order: header, one detail block
// per enriched signal, the raw scoring blocks, then the summary line.
func buildBlocks(query string, fieldNames []string, signals []model.EnrichedSignal, scored []model.ScoredSignal, scoreByID map[int]model.ScoredSignal, rawBlocks []string, summary model.RunSummary, highLikelihood float64) []string {
	var header strings.Builder
	header.WriteString("Stealth Launch Radar Report\n")
	fmt.Fprintf(&header, "Query: %s\n", query)
	fmt.Fprintf(&header, "URLs Analyzed: %d\n", summary.CandidateURLs)
	fmt.Fprintf(&header, "Fields Requested: %s\n", strings.Join(fieldNames, ", "))
	fmt.Fprintf(&header, "Alerts Dispatched: %d", summary.AlertsDispatched)

	blocks := []string{header.String()}

	for i, sig := range signals {
		var b strings.Builder
		fmt.Fprintf(&b, "Signal %d: %s\n", i+1, sig.Title)
		fmt.Fprintf(&b, "URL: %s\n", sig.SourceURL)
		fmt.Fprintf(&b, "Excerpt: %s\n", excerptPreview(sig.Excerpt))
		if sc, ok := scoreByID[i]; ok {
			fmt.Fprintf(&b, "Status: scored %.2f (%s)", sc.Likelihood, sc.Confidence)
		} else {
			b.WriteString("Status: score not decoded")
		}
		blocks = append(blocks, b.String())
	}

	blocks = append(blocks, rawBlocks...)

	high := score.CountHighLikelihood(scored, highLikelihood)
	blocks = append(blocks, fmt.Sprintf("Summary: %d/%d signals show high launch likelihood.", high, len(scored)))

	return blocks
}

func excerptPreview(s string) string {
	const previewChars = 120
	if len(s) <= previewChars {
		return s
	}
	return s[:previewChars] + "..."
}
