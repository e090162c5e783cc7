// Package model defines the typed records passed between pipeline stages.
// Stages exchange structured values; the labeled-line text format exists
// only at the scorer boundary and in the final report.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SearchHit is a single search result. Ephemeral; never persisted directly.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Confidence is the scorer's self-reported confidence level.
type Confidence string

const (
	ConfidenceLow     Confidence = "Low"
	ConfidenceMedium  Confidence = "Medium"
	ConfidenceHigh    Confidence = "High"
	ConfidenceUnknown Confidence = "Unknown"
)

// ParseConfidence maps free text to a Confidence. Anything unrecognized is
// Unknown, never an error.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow
	case "medium":
		return ConfidenceMedium
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceUnknown
	}
}

// EnrichedSignal is one candidate URL's composed evidence record.
// Immutable once produced by the enrichment stage.
type EnrichedSignal struct {
	// CandidateIndex is the position of the originating URL in the
	// candidate sequence. Kept explicitly so failed siblings can be
	// skipped without breaking index-to-URL correspondence.
	CandidateIndex int               `json:"candidate_index"`
	Title          string            `json:"title"`
	SourceURL      string            `json:"source_url"`
	Excerpt        string            `json:"excerpt"`
	Fields         map[string]string `json:"fields"`
}

var labelCaser = cases.Title(language.English)

// FieldLabel renders a field key as the title-cased label used in the
// labeled-line text contract ("pricing" -> "Pricing").
func FieldLabel(key string) string {
	return labelCaser.String(key)
}

// BodyText renders the signal as the fixed-format textual block consumed by
// the scorer: source URL, content excerpt, then one "<Label>: <value>" line
// per extracted field. The format is a hard contract; field labels are
// title-cased keys, one per line, in sorted key order for determinism.
func (s EnrichedSignal) BodyText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source URL: %s\n", s.SourceURL)
	fmt.Fprintf(&b, "Content Excerpt: %s\n", s.Excerpt)

	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", FieldLabel(k), s.Fields[k])
	}
	return b.String()
}

// ScoredSignal is the decoded scoring result for one enriched signal.
// SignalID indexes into the enriched-signal sequence submitted for scoring.
type ScoredSignal struct {
	SignalID   int        `json:"signal_id"`
	Likelihood float64    `json:"likelihood"`
	Confidence Confidence `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

// StoredRecord is the persisted superset of an enriched and scored signal.
// Append-only: one row per processed signal regardless of score.
type StoredRecord struct {
	ID         int64             `json:"id"`
	URL        string            `json:"url"`
	Title      string            `json:"title"`
	Excerpt    string            `json:"excerpt"`
	Fields     map[string]string `json:"fields"`
	Likelihood float64           `json:"likelihood"`
	Confidence Confidence        `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AlertEvent is the notification payload for a threshold-crossing signal.
// Derived, not persisted; fired at most once per scored signal.
type AlertEvent struct {
	Title  string            `json:"title"`
	Score  float64           `json:"score"`
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields,omitempty"`
}

// RunStatus tracks a pipeline run record's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusAborted  RunStatus = "aborted"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one pipeline run record.
type Run struct {
	ID        string      `json:"id"`
	Query     string      `json:"query"`
	Status    RunStatus   `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary accumulates per-run counters surfaced in the report and stored
// with the run record.
type RunSummary struct {
	Query            string `json:"query"`
	CandidateURLs    int    `json:"candidate_urls"`
	SignalsEnriched  int    `json:"signals_enriched"`
	SignalsScored    int    `json:"signals_scored"`
	SignalsStored    int    `json:"signals_stored"`
	AlertsDispatched int    `json:"alerts_dispatched"`
}
