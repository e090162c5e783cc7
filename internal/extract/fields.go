// Package extract pulls structured values out of the semi-structured text
// blocks exchanged with external collaborators: labeled-line field blocks
// and scorer analysis blocks.
package extract

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/stealthee/radar-cli/internal/model"
)

// Fields extracts named values from a labeled-line block. A field is present
// iff its title-cased label begins a line as "<Label>: "; the value is the
// remainder of that line. Absent labels are simply omitted from the result,
// never an error.
func Fields(block string, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := Line(block, model.FieldLabel(name)); ok {
			out[name] = v
		}
	}
	return out
}

// Line returns the value of the first line starting with "<label>: ",
// trimmed of surrounding whitespace. The second return reports presence.
func Line(block, label string) (string, bool) {
	prefix := label + ":"
	for _, line := range strings.Split(block, "\n") {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// Score decodes one scorer analysis block into a ScoredSignal. The block
// must carry a parseable "Launch Likelihood" line; a missing or malformed
// likelihood is a decode error and the caller drops the signal. Confidence
// and reasoning degrade to Unknown/empty rather than failing.
func Score(block string) (model.ScoredSignal, error) {
	raw, ok := Line(block, "Launch Likelihood")
	if !ok {
		return model.ScoredSignal{}, eris.New("extract: no launch likelihood in block")
	}

	// The collaborator may render the value as "0.85/1.0".
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "/1.0"))
	likelihood, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return model.ScoredSignal{}, eris.Wrapf(err, "extract: parse likelihood %q", raw)
	}
	if likelihood < 0 {
		likelihood = 0
	}
	if likelihood > 1 {
		likelihood = 1
	}

	confidence := model.ConfidenceUnknown
	if c, ok := Line(block, "Confidence"); ok {
		confidence = model.ParseConfidence(c)
	}

	reasoning, _ := Line(block, "Reasoning")

	return model.ScoredSignal{
		Likelihood: likelihood,
		Confidence: confidence,
		Reasoning:  reasoning,
	}, nil
}
