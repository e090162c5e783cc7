// Package enrich turns candidate URLs into composed signal records: fetch,
// clean, extract target fields. Candidates are processed independently and
// strictly in sequence; one failing URL never aborts the loop.
package enrich

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stealthee/radar-cli/internal/model"
	"github.com/stealthee/radar-cli/pkg/nimble"
)

// ErrNoSignals is returned when no candidate URL yields a signal. Distinct
// from the scorer returning nothing.
var ErrNoSignals = eris.New("enrich: no candidate URL could be enriched")

// Stage enriches candidate URLs into signals.
type Stage struct {
	fetcher      Fetcher
	parser       nimble.Client
	excerptChars int
}

// NewStage creates an enrichment stage. excerptChars bounds the content
// excerpt embedded in each signal.
func NewStage(fetcher Fetcher, parser nimble.Client, excerptChars int) *Stage {
	if excerptChars <= 0 {
		excerptChars = 500
	}
	return &Stage{
		fetcher:      fetcher,
		parser:       parser,
		excerptChars: excerptChars,
	}
}

// Run enriches up to len(urls) candidates in order. Failed candidates are
// logged and skipped; successes are returned gap-free in candidate order,
// each tagged with its originating candidate index. Returns ErrNoSignals
// when every candidate fails.
func (s *Stage) Run(ctx context.Context, urls []string, fieldNames []string) ([]model.EnrichedSignal, error) {
	log := zap.L().With(zap.String("stage", "enrich"))

	var signals []model.EnrichedSignal
	for i, u := range urls {
		sig, err := s.enrichOne(ctx, i, u, fieldNames)
		if err != nil {
			if ctx.Err() != nil {
				return signals, ctx.Err()
			}
			log.Warn("candidate skipped",
				zap.Int("candidate", i),
				zap.String("url", u),
				zap.Error(err),
			)
			continue
		}
		signals = append(signals, *sig)
		log.Info("candidate enriched",
			zap.Int("candidate", i),
			zap.String("url", u),
			zap.Int("fields", len(sig.Fields)),
		)
	}

	if len(signals) == 0 {
		return nil, ErrNoSignals
	}
	return signals, nil
}

func (s *Stage) enrichOne(ctx context.Context, index int, url string, fieldNames []string) (*model.EnrichedSignal, error) {
	res, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	text := Clean(res.Body)
	if text == "" {
		return nil, eris.Errorf("enrich: %s produced no visible text", url)
	}

	fields, err := s.parser.ParseFields(ctx, res.Body, fieldNames)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: parse fields for %s", url)
	}

	title := Title(res.Body)
	if title == "" {
		title = fmt.Sprintf("Stealth Launch Signal %d", index+1)
	}

	excerpt := text
	if len(excerpt) > s.excerptChars {
		excerpt = excerpt[:s.excerptChars]
	}

	return &model.EnrichedSignal{
		CandidateIndex: index,
		Title:          title,
		SourceURL:      url,
		Excerpt:        excerpt,
		Fields:         fields,
	}, nil
}
