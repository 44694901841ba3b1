package config

import "time"

// Default cost, in cents, charged for each budget class when a city profile
// does not override it (§4.2).
var defaultClassCostCents = map[string]int{
	"extraction":  2,
	"embedding":   1,
	"web_search":  1,
	"investigation": 3,
	"discovery":     4,
	"synthesis":     5,
	"validation":    2,
}

// Default run budget when a profile omits one.
const DefaultRunBudgetCents int64 = 2000

// Fetch/LLM timeouts and retry schedule (§5).
const (
	FetchTimeout          = 30 * time.Second
	ExtractionTimeout     = 60 * time.Second
	InvestigationTimeout  = 90 * time.Second
	GraphWriteTimeout     = 10 * time.Second
	RetryBackoffInitial   = 500 * time.Millisecond
	RetryBackoffSecond    = 2 * time.Second
	MaxIdempotentRetries  = 2
)

// Bounded-parallelism defaults for the fetch layer (§4.3).
const (
	DefaultWebFetchParallelism    = 10
	DefaultSocialFetchParallelism = 10
	DefaultSearchParallelism      = 5
)

// Scout-loop caps (§4.6, §4.7, §4.8).
const (
	MaxInvestigationTargetsPerRun = 5
	MaxSearchQueriesPerTarget     = 3
	MaxSearchQueriesPerRun        = 10
	MaxCuriosityQueries           = 7
	InvestigationCooldown         = 7 * 24 * time.Hour
)

// Reaping windows per signal variant (§4.6 step 2).
const (
	NeedFreshnessWindow       = 30 * 24 * time.Hour
	NoticeFreshnessWindow     = 30 * 24 * time.Hour
	AidTensionFreshnessWindow = 150 * 24 * time.Hour
)

// Dead-source deactivation threshold (§4.6.1).
const MaxConsecutiveEmptyRuns = 10

// Story archival window (§4.10.E).
const StoryArchiveWindow = 30 * 24 * time.Hour

// Supervisor tuning (§4.12).
const (
	DefaultMaxLLMChecks         = 50
	IssueExpiryWindow           = 30 * 24 * time.Hour
	SharedActorsThreshold       = 2
	SupervisorLockTTL           = 30 * time.Minute
	DefaultSupervisorBudgetCents int64 = 1000
)

// DefaultBudgetConfig returns a BudgetConfig seeded with the system defaults,
// used when a CityProfile's budget block is zero-valued.
func DefaultBudgetConfig() BudgetConfig {
	classCopy := make(map[string]int, len(defaultClassCostCents))
	for k, v := range defaultClassCostCents {
		classCopy[k] = v
	}
	return BudgetConfig{
		RunCents:      DefaultRunBudgetCents,
		ClassOverride: classCopy,
	}
}
