package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
}

// ReportInput is the data a supervisor run hands to Service after it
// finishes, enough to render and thread a Block Kit message.
type ReportInput struct {
	City    string
	Summary string
	Issues  int
}

// Service handles Slack notification delivery for supervisor reports.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NotifyReport sends a supervisor report, threading it onto the most
// recent report for the same city found in the last 24 hours so a
// day's worth of runs reads as one conversation. Fail-open: errors are
// logged, never returned.
func (s *Service) NotifyReport(ctx context.Context, input ReportInput) {
	if s == nil {
		return
	}

	threadTS, err := s.client.FindMessageByFingerprint(ctx, ReportFingerprint(input.City))
	if err != nil {
		s.logger.Warn("failed to find Slack thread for supervisor report",
			"city", input.City, "error", err)
	}

	blocks := BuildReportMessage(input.City, input.Summary, input.Issues)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("failed to send Slack supervisor report",
			"city", input.City, "error", err)
	}
}
