package supervisor

// Report is the batched outcome of one supervisor run (§6
// Supervisor::run output; §4.12's additional triage_pool_size and
// llm_checks_performed fields).
type Report struct {
	City string

	OrphanedEvidenceDeleted int
	EmptySignalsDeleted     int
	ActorsMerged            int
	FakeCoordsCleared       int

	TriagePoolSize     int
	LLMChecksPerformed int
	IssuesCreated      int
	IssuesResolved     int
	IssuesExpired      int

	SourcesReset       int
	EchoFlaggedStories int

	PenaltiesDeferred bool
}
