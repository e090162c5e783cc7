// Package score submits enriched signals to the scoring model and decodes
// the labeled-line analysis blocks it returns.
package score

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stealthee/radar-cli/internal/extract"
	"github.com/stealthee/radar-cli/internal/model"
	"github.com/stealthee/radar-cli/pkg/anthropic"
)

// MaxBatchSize is the hard cap on signals per batch request. Larger batches
// are rejected before any network call.
const MaxBatchSize = 20

// ErrBatchTooLarge is returned for batches over MaxBatchSize.
var ErrBatchTooLarge = eris.Errorf("score: too many signals, maximum %d per batch", MaxBatchSize)

const systemPrompt = `You are an expert at detecting stealth product launches from text signals.

Look for indicators like:
- Mentions of "stealth mode", "quiet launch", "beta", "pilot"
- Product announcements without fanfare
- Funding announcements with product mentions
- Team hiring for specific products
- Patent filings or trademark applications
- Partnership announcements with new products

For every signal you are given, respond with exactly one analysis block in this format, in the same order as the input, nothing else:

Signal <number>:
Launch Likelihood: <number between 0 and 1>
Confidence: <Low, Medium, or High>
Reasoning: <2-3 sentences on one line>`

// Scorer scores signals through the Anthropic API.
type Scorer struct {
	ai    anthropic.Client
	model string
}

// NewScorer creates a scorer using the given model.
func NewScorer(ai anthropic.Client, modelID string) *Scorer {
	return &Scorer{ai: ai, model: modelID}
}

// blockHeaderRe matches the "Signal N:" header line that starts each
// analysis block in the scorer's response.
var blockHeaderRe = regexp.MustCompile(`(?m)^Signal \d+:\s*$`)

// ScoreBatch submits all signals as one request and decodes the returned
// analysis blocks positionally: block i corresponds to signal i. A response
// shorter than the request yields only the decoded prefix; an undecodable
// block drops that signal and keeps its siblings. The raw blocks are
// returned alongside the decoded scores for report assembly.
func (s *Scorer) ScoreBatch(ctx context.Context, signals []model.EnrichedSignal) ([]model.ScoredSignal, []string, error) {
	if len(signals) > MaxBatchSize {
		return nil, nil, ErrBatchTooLarge
	}
	if len(signals) == 0 {
		return nil, nil, eris.New("score: no signals to score")
	}

	var user strings.Builder
	user.WriteString("Analyze the following signals for indicators of stealth product launches:\n")
	for i, sig := range signals {
		fmt.Fprintf(&user, "\nSignal %d:\nTitle: %s\n%s\n", i+1, sig.Title, sig.BodyText())
	}

	resp, err := s.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: 1024,
		System:    []anthropic.SystemBlock{{Text: systemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: user.String()}},
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "score: batch request")
	}
	resp.Usage.LogCost(s.model, "batch_score")

	blocks := splitBlocks(resp.Text())
	if len(blocks) > len(signals) {
		// Trailing unmatched blocks are dropped, never misattributed.
		blocks = blocks[:len(signals)]
	}

	log := zap.L().With(zap.String("stage", "score"))
	var scored []model.ScoredSignal
	for i, block := range blocks {
		sc, decodeErr := extract.Score(block)
		if decodeErr != nil {
			log.Warn("scoring block dropped",
				zap.Int("signal", i),
				zap.Error(decodeErr),
			)
			continue
		}
		sc.SignalID = i
		scored = append(scored, sc)
	}

	return scored, blocks, nil
}

// ScoreOne scores a single signal text and returns the raw labeled analysis
// block along with the decoded result.
func (s *Scorer) ScoreOne(ctx context.Context, text, title string) (model.ScoredSignal, string, error) {
	user := fmt.Sprintf("Analyze the following signal for indicators of a stealth product launch:\n\nSignal 1:\nTitle: %s\nContent: %s\n", title, text)

	resp, err := s.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: 300,
		System:    []anthropic.SystemBlock{{Text: systemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return model.ScoredSignal{}, "", eris.Wrap(err, "score: single request")
	}
	resp.Usage.LogCost(s.model, "score")

	block := resp.Text()
	sc, err := extract.Score(block)
	if err != nil {
		return model.ScoredSignal{}, block, err
	}
	return sc, block, nil
}

// CountHighLikelihood counts signals whose likelihood exceeds the given
// threshold. Used only for the report summary line, never for alerting.
func CountHighLikelihood(scored []model.ScoredSignal, threshold float64) int {
	n := 0
	for _, s := range scored {
		if s.Likelihood > threshold {
			n++
		}
	}
	return n
}

// splitBlocks splits the scorer's response into per-signal analysis blocks
// on "Signal N:" headers, preserving response order. Text before the first
// header is ignored.
func splitBlocks(text string) []string {
	locs := blockHeaderRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, strings.TrimSpace(text[loc[0]:end]))
	}
	return blocks
}
