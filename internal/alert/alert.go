// Package alert dispatches threshold-crossing signals to Slack. Delivery is
// best effort: a failed webhook never fails the pipeline run.
package alert

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/stealthee/radar-cli/internal/model"
	"github.com/stealthee/radar-cli/pkg/slackhook"
)

// DefaultThreshold is the minimum likelihood, inclusive, at which a scored
// signal triggers an alert.
const DefaultThreshold = 0.75

// Dispatcher evaluates scored signals against the alert threshold and sends
// at most one notification per signal.
type Dispatcher struct {
	threshold float64
	notifier  slackhook.Notifier
}

// NewDispatcher creates a dispatcher. A nil notifier disables alerting; the
// threshold comparison still runs so callers can count would-be alerts.
func NewDispatcher(threshold float64, notifier slackhook.Notifier) *Dispatcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Dispatcher{threshold: threshold, notifier: notifier}
}

// MaybeAlert sends a notification when the event's score meets the threshold
// (inclusive). Returns whether a notification was delivered. Delivery
// failures are logged and swallowed.
func (d *Dispatcher) MaybeAlert(ctx context.Context, event model.AlertEvent) bool {
	if event.Score < d.threshold {
		return false
	}
	if d.notifier == nil {
		zap.L().Info("alert suppressed, no webhook configured",
			zap.String("title", event.Title),
			zap.Float64("score", event.Score),
		)
		return false
	}

	if err := d.notifier.Notify(ctx, buildMessage(event)); err != nil {
		zap.L().Warn("alert delivery failed",
			zap.String("title", event.Title),
			zap.String("url", event.URL),
			zap.Error(err),
		)
		return false
	}

	zap.L().Info("alert dispatched",
		zap.String("title", event.Title),
		zap.Float64("score", event.Score),
	)
	return true
}

// buildMessage renders the event as a Block Kit message: header, score and
// source fields, then one field per extracted target field.
func buildMessage(event model.AlertEvent) slackhook.Message {
	fields := []slackhook.Text{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Score:* %.2f", event.Score)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Source:* <%s>", event.URL)},
	}

	keys := make([]string, 0, len(event.Fields))
	for k := range event.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, slackhook.Text{
			Type: "mrkdwn",
			Text: fmt.Sprintf("*%s:* %s", model.FieldLabel(k), event.Fields[k]),
		})
	}

	return slackhook.Message{
		Text: fmt.Sprintf("Stealth launch signal: %s (%.2f)", event.Title, event.Score),
		Blocks: []slackhook.Block{
			{
				Type: "header",
				Text: &slackhook.Text{Type: "plain_text", Text: ":rotating_light: Stealth Launch Signal"},
			},
			{
				Type: "section",
				Text: &slackhook.Text{Type: "mrkdwn", Text: fmt.Sprintf("*%s*", event.Title)},
			},
			{
				Type:   "section",
				Fields: fields,
			},
		},
	}
}
