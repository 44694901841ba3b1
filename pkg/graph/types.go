// Package graph defines the domain types the rest of the system uses to
// read and write the civic-intelligence property graph. The Store
// contract and its two adapters (postgres-backed and in-memory) live in
// pkg/graph/store.
package graph

import "time"

// Variant enumerates the polymorphic Signal kinds.
type Variant string

const (
	VariantGathering Variant = "gathering"
	VariantAid       Variant = "aid"
	VariantNeed      Variant = "need"
	VariantNotice    Variant = "notice"
	VariantTension   Variant = "tension"
)

// Sensitivity gates how aggressively a Signal's coordinates get fuzzed
// and how broadly its content propagates into stories.
type Sensitivity string

const (
	SensitivityNormal   Sensitivity = "normal"
	SensitivityElevated Sensitivity = "elevated"
	SensitivitySensitive Sensitivity = "sensitive"
)

// GeoPrecision records how literally (Lat, Lng) should be trusted.
type GeoPrecision string

const (
	GeoPrecisionExact       GeoPrecision = "exact"
	GeoPrecisionApproximate GeoPrecision = "approximate"
	GeoPrecisionCity        GeoPrecision = "city"
)

// Signal is the common shape of every node in the polymorphic Signal
// family (§3). Variant-specific fields are optional and interpreted
// according to Variant.
type Signal struct {
	ID                  string
	City                string
	Variant             Variant
	Title               string
	Summary             string
	Confidence          float64
	Sensitivity         Sensitivity
	Lat                 *float64
	Lng                 *float64
	GeoPrecision        GeoPrecision
	SourceURL           string
	LastConfirmedActive time.Time
	CorroborationCount  int
	SourceDiversity     int
	ExternalRatio       *float64
	CauseHeat           *float64
	Embedding           []float32
	InvestigatedAt      *time.Time
	QualityPenalty      *float64
	CreatedAt           time.Time

	// Gathering / Aid
	StartsAt    *time.Time
	EndsAt      *time.Time
	IsRecurring *bool
	ActionURL   *string
	IsOngoing   *bool

	// Need
	Urgency     *string
	WhatNeeded  *string

	// Notice / Tension
	Severity        *string
	Category        *string
	EffectiveDate   *time.Time
	SourceAuthority *string
	WhatWouldHelp   *string
}

// Evidence is an immutable provenance record backing a Signal.
type Evidence struct {
	ID          string
	SignalID    string
	SourceID    string
	URL         string
	ContentHash uint64
	RawExcerpt  string
	FetchedAt   time.Time
	PublishedAt *time.Time
}

// SourceType enumerates where a Source's content comes from.
type SourceType string

const (
	SourceCuratedWeb      SourceType = "curated_web"
	SourceCuratedHeadless SourceType = "curated_headless"
	SourceWebQuery        SourceType = "web_query"
	SourceRSS             SourceType = "rss"
	SourceInstagram       SourceType = "instagram"
	SourceFacebook        SourceType = "facebook"
	SourceReddit          SourceType = "reddit"
	SourceTikTok          SourceType = "tiktok"
	SourceTwitter         SourceType = "twitter"
	SourceHumanSubmission SourceType = "human_submission"
)

// Source is a fetchable origin with feedback-adjusted weight (§4.6.1).
type Source struct {
	ID                   string
	City                 string
	CanonicalKey         string
	SourceType           SourceType
	URL                  string
	Weight               float64
	Active               bool
	Scrapes              int
	SignalsProduced      int
	SignalsCorroborated  int
	LastFetchedAt        *time.Time
	NextDueAt            *time.Time
	LastProducedSignal   *time.Time
	ConsecutiveEmptyRuns int
	ConsecutiveFailures  int
	QualityPenalty       *float64
	DiscoveryMethod      string
	GapContext           string
	EntityID             string
	CreatedAt            time.Time
}

// Actor is an organization or persistent entity mentioned by Signals.
type Actor struct {
	ID            string
	City          string
	CanonicalName string
	Aliases       []string
	Domains       []string
	SocialURLs    []string
}

// StoryStatus tracks a Story's clustering confidence (§4.10.C), kept
// independent of Arc so archival never erases how corroborated the
// story was.
type StoryStatus string

const (
	StoryStatusEmerging  StoryStatus = "emerging"
	StoryStatusConfirmed StoryStatus = "confirmed"
	StoryStatusEcho      StoryStatus = "echo"
)

// Story is a narrative cluster anchored on a Tension signal, with the
// derived metrics §4.10.C computes on every touched story.
type Story struct {
	ID              string
	City            string
	TensionSignalID string
	Headline        string
	Lede            *string
	Narrative       *string
	Category        *string
	// Arc is the LLM-synthesized narrative arc, forced to "archived"
	// once §4.10.E's staleness rule fires.
	Arc            *string
	ActionGuidance *string
	Status         StoryStatus

	SignalCount   int
	AskCount      int
	GiveCount     int
	EventCount    int
	EntityCount   int
	SourceCount   int
	TypeDiversity int
	GapScore      int
	GapVelocity   float64
	CentroidLat   *float64
	CentroidLng   *float64
	Sensitivity   Sensitivity
	Velocity      float64
	Energy        float64

	Heat          float64
	ResponseCount int
	EchoScore     *float64
	FirstSeen     time.Time
	LastUpdated   time.Time
	LastRewovenAt time.Time
	CreatedAt     time.Time
}

// IsArchived reports whether a story's Arc has been forced to the
// archived terminal state by §4.10.E.
func (s Story) IsArchived() bool {
	return s.Arc != nil && *s.Arc == "archived"
}

// StoryMetrics is the §4.10.C metric bundle the weaver recomputes for
// every touched story on each run.
type StoryMetrics struct {
	Status        StoryStatus
	SignalCount   int
	AskCount      int
	GiveCount     int
	EventCount    int
	EntityCount   int
	SourceCount   int
	TypeDiversity int
	GapScore      int
	GapVelocity   float64
	CentroidLat   *float64
	CentroidLng   *float64
	Sensitivity   Sensitivity
	Velocity      float64
	Energy        float64
	Heat          float64
	ResponseCount int
	RewovenAt     time.Time
}

// ClusterSnapshot records a Story's membership and heat at a point in
// time, used to compute velocity.
type ClusterSnapshot struct {
	ID              string
	StoryID         string
	MemberSignalIDs []string
	Heat            float64
	ExternalRatio   *float64
	TakenAt         time.Time
}

// IssueCategory enumerates the kinds of defect the supervisor raises.
type IssueCategory string

const (
	IssueStaleCoords         IssueCategory = "stale_coords"
	IssueLowDiversity        IssueCategory = "low_diversity"
	IssueContradictsEvidence IssueCategory = "contradicts_evidence"
	IssueOrphanedEvidence    IssueCategory = "orphaned_evidence"
	IssueDuplicateCandidate  IssueCategory = "duplicate_candidate"
	IssueSourceDegraded      IssueCategory = "source_degraded"
	IssueEchoChamber         IssueCategory = "echo_chamber"
)

// IssueStatus tracks a ValidationIssue's lifecycle.
type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "open"
	IssueStatusResolved IssueStatus = "resolved"
	IssueStatusExpired  IssueStatus = "expired"
)

// SubjectKind names what a ValidationIssue is about.
type SubjectKind string

const (
	SubjectSignal SubjectKind = "signal"
	SubjectSource SubjectKind = "source"
	SubjectStory  SubjectKind = "story"
)

// ValidationIssue is a supervisor finding that could not be auto-fixed.
type ValidationIssue struct {
	ID          string
	City        string
	SubjectKind SubjectKind
	SubjectID   string
	Category    IssueCategory
	Detail      string
	Status      IssueStatus
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// LockKind distinguishes the Scout lease from the Supervisor lease.
type LockKind string

const (
	LockScout      LockKind = "scout"
	LockSupervisor LockKind = "supervisor"
)

// Lock is a compare-and-set lease over a city for one of the two
// cooperating processes (§3 invariant 8).
type Lock struct {
	City        string
	Kind        LockKind
	HolderRunID string
	AcquiredAt  time.Time
	ExpiresAt   time.Time
}

// DuplicateMatch is what the vector/title dedup lookups return.
type DuplicateMatch struct {
	ID         string
	Cosine     float64
	SameSource bool
}

// SimilarityEdge is a SIMILAR_TO relationship between two signals (§4.11).
// SignalAID is always lexically less than SignalBID, matching the
// deterministic ordering UpsertSimilarityEdge stores under.
type SimilarityEdge struct {
	SignalAID string
	SignalBID string
	Weight    float64
}

// SupervisorState is the supervisor's durable per-city progress cursor
// (§4.12): a restart resumes triage from the watermark rather than
// re-scanning everything already checked.
type SupervisorState struct {
	City                string
	LastTriageAt        *time.Time
	LastEchoScanAt      *time.Time
	LLMChecksThisWindow int
	WindowStartedAt     time.Time
}

// TensionBrief annotates a Tension signal with its current respondent
// count, the briefing input the discoverer (§4.7) and response/gathering
// finder (§4.9) both need to tell an unmet tension from an answered one.
type TensionBrief struct {
	Signal        *Signal
	ResponseCount int
}
