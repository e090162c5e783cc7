package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ParseConfidence("High"))
	assert.Equal(t, ConfidenceHigh, ParseConfidence(" high "))
	assert.Equal(t, ConfidenceMedium, ParseConfidence("MEDIUM"))
	assert.Equal(t, ConfidenceLow, ParseConfidence("low"))
	assert.Equal(t, ConfidenceUnknown, ParseConfidence("very sure"))
	assert.Equal(t, ConfidenceUnknown, ParseConfidence(""))
}

func TestFieldLabel(t *testing.T) {
	assert.Equal(t, "Pricing", FieldLabel("pricing"))
	assert.Equal(t, "Release Notes", FieldLabel("release notes"))
}

func TestEnrichedSignal_BodyText(t *testing.T) {
	sig := EnrichedSignal{
		Title:     "Acme launches quietly",
		SourceURL: "https://techcrunch.com/acme",
		Excerpt:   "Acme has been operating in stealth mode.",
		Fields: map[string]string{
			"pricing":   "$29/mo",
			"changelog": "v1.0",
		},
	}

	want := "Source URL: https://techcrunch.com/acme\n" +
		"Content Excerpt: Acme has been operating in stealth mode.\n" +
		"Changelog: v1.0\n" +
		"Pricing: $29/mo\n"
	assert.Equal(t, want, sig.BodyText())
}

func TestEnrichedSignal_BodyTextNoFields(t *testing.T) {
	sig := EnrichedSignal{SourceURL: "https://a.example", Excerpt: "x"}
	assert.Equal(t, "Source URL: https://a.example\nContent Excerpt: x\n", sig.BodyText())
}
