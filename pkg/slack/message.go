package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// ReportFingerprint returns the text FindMessageByFingerprint searches
// for to thread a city's supervisor reports together, so a day's worth
// of runs reads as one conversation instead of flooding the channel.
func ReportFingerprint(city string) string {
	return fmt.Sprintf("Supervisor run — %s", city)
}

// BuildReportMessage creates Block Kit blocks for a supervisor
// end-of-run report (§4.12, §6 Supervisor::run outputs). emoji reflects
// whether the run found anything worth a human's attention.
func BuildReportMessage(city, summary string, issuesCreated int) []goslack.Block {
	emoji := ":white_check_mark:"
	if issuesCreated > 0 {
		emoji = ":mag:"
	}

	header := fmt.Sprintf("%s *%s*", emoji, ReportFingerprint(city))
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(summary), false, false),
			nil, nil,
		),
	}
	return blocks
}

func truncateForSlack(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated)_"
}
