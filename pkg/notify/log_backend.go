package notify

import (
	"context"
	"log/slog"
)

// LogBackend writes the supervisor's end-of-run report to structured
// logs. Used as the default backend and in tests, mirroring pkg/slack's
// nil (no-op) Service when no token or channel is configured.
type LogBackend struct {
	Logger *slog.Logger
}

// NewLogBackend returns a LogBackend logging through slog.Default if
// logger is nil.
func NewLogBackend(logger *slog.Logger) *LogBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogBackend{Logger: logger.With("component", "supervisor-notify")}
}

// Send implements Backend.
func (b *LogBackend) Send(ctx context.Context, report Report) error {
	b.Logger.Info("supervisor run report",
		"city", report.City,
		"orphaned_evidence", report.OrphanedEvidence,
		"empty_signals", report.EmptySignals,
		"actors_merged", report.ActorsMerged,
		"fake_coords_cleared", report.FakeCoordsCleared,
		"triage_pool_size", report.TriagePoolSize,
		"llm_checks_performed", report.LLMChecksPerformed,
		"issues_created", report.IssuesCreated,
		"issues_resolved", report.IssuesResolved,
		"issues_expired", report.IssuesExpired,
		"sources_reset", report.SourcesReset,
		"echo_flagged_stories", report.EchoFlaggedStories,
	)
	return nil
}
