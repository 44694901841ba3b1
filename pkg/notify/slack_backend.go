package notify

import (
	"context"
	"fmt"

	"github.com/civic-scout/scout/pkg/slack"
)

// SlackBackend posts the supervisor's end-of-run report to a Slack
// channel via pkg/slack.Service, which threads consecutive reports for
// the same city together instead of flooding the channel.
type SlackBackend struct {
	svc *slack.Service
}

// NewSlackBackend constructs a SlackBackend posting to channelID with
// the given bot token.
func NewSlackBackend(token, channelID string) *SlackBackend {
	return &SlackBackend{svc: slack.NewService(slack.ServiceConfig{Token: token, Channel: channelID})}
}

// Send implements Backend.
func (b *SlackBackend) Send(ctx context.Context, report Report) error {
	summary := fmt.Sprintf(
		"Auto-fix: %d orphaned evidence, %d empty signals, %d actors merged, %d fake coords cleared\n"+
			"Triage: %d candidates, %d LLM checks, %d issues created / %d resolved / %d expired\n"+
			"Sources reset: %d · Echo-flagged stories: %d",
		report.OrphanedEvidence, report.EmptySignals, report.ActorsMerged, report.FakeCoordsCleared,
		report.TriagePoolSize, report.LLMChecksPerformed, report.IssuesCreated, report.IssuesResolved, report.IssuesExpired,
		report.SourcesReset, report.EchoFlaggedStories,
	)
	b.svc.NotifyReport(ctx, slack.ReportInput{City: report.City, Summary: summary, Issues: report.IssuesCreated})
	return nil
}
