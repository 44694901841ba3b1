// Package notify implements the pluggable NotifyBackend the supervisor
// sends a batched end-of-run report to (§4.12).
package notify

import "context"

// Report is the batched summary a supervisor run hands to a NotifyBackend
// once it finishes (§6 Supervisor::run outputs).
type Report struct {
	City               string
	OrphanedEvidence   int
	EmptySignals       int
	ActorsMerged       int
	FakeCoordsCleared  int
	TriagePoolSize     int
	LLMChecksPerformed int
	IssuesCreated      int
	IssuesResolved     int
	IssuesExpired      int
	SourcesReset       int
	EchoFlaggedStories int
}

// Backend is the pluggable sink a supervisor run sends its Report to.
// Satisfied by *LogBackend and *SlackBackend.
type Backend interface {
	Send(ctx context.Context, report Report) error
}
