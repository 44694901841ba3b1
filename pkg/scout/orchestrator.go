package scout

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/dedup"
	"github.com/civic-scout/scout/pkg/extract"
	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/masking"
	"github.com/civic-scout/scout/pkg/similarity"
)

// Store is the full store surface the orchestrator needs across every
// phase; it is satisfied by *store.Postgres and *store.Memory.
type Store interface {
	lockStore
	reapStore
	scheduleStore
	persistStore
	dedup.Store

	ListEmbeddedSignals(ctx context.Context, city string) ([]*graph.Signal, error)
	UpsertSimilarityEdge(ctx context.Context, aID, bID string, weight float64) error
}

// investigator runs §4.8 against one city; defined here as the narrow
// surface the orchestrator calls so pkg/investigate can be wired
// without this package importing it back.
type investigator interface {
	Run(ctx context.Context, city config.CityProfile, meter *budget.Meter) (PhaseStats, error)
}

// responseFinder runs §4.9.
type responseFinder interface {
	Run(ctx context.Context, city config.CityProfile, meter *budget.Meter) (PhaseStats, error)
}

// storyWeaver runs §4.10.
type storyWeaver interface {
	Run(ctx context.Context, city string, meter *budget.Meter) (storiesTouched int, err error)
}

// discoverer runs §4.7.
type discoverer interface {
	Run(ctx context.Context, city config.CityProfile, meter *budget.Meter) (queriesCreated int, err error)
}

// Orchestrator drives one Scout run end to end (§4.6). Collaborators
// whose packages haven't been wired in yet may be left nil; their
// phases are then skipped and their RunReport fields stay zero, same
// as a budget-exhausted skip (§7).
type Orchestrator struct {
	Store       Store
	Caps        fetch.Capabilities
	Pool        *fetch.Pool
	Extractor   *extract.Extractor
	Embedder    embedder
	Similarity  *similarity.Builder
	Investigate investigator
	Respond     responseFinder
	Weave       storyWeaver
	Discover    discoverer
	Masker      *masking.Service
}

// Run executes one full Scout run for city under a fresh run ID,
// releasing ScoutLock(city) on every exit path including cancellation
// (§4.6, §5).
func (o *Orchestrator) Run(ctx context.Context, city config.CityProfile) (*RunReport, error) {
	runID := ulid.Make().String()
	now := time.Now()
	report := newRunReport(city.CityKey, now)
	meter := budget.NewMeter(city.Budget.RunCents, classCosts(city.Budget))

	if err := acquireScoutLock(ctx, o.Store, city.CityKey, runID, now); err != nil {
		return nil, err
	}
	defer func() {
		if err := releaseScoutLock(context.WithoutCancel(ctx), o.Store, city.CityKey, runID); err != nil {
			slog.Warn("scout: release lock failed", "city", city.CityKey, "error", err)
		}
	}()

	reaped, err := reap(ctx, o.Store, city.CityKey, now)
	report.recordPhaseErr("reap", err)
	report.Reaped = reaped

	due := o.runSchedulePhase(ctx, city, report, now)
	o.runFetchExtractPersistPhase(ctx, due, city, report, meter)

	if o.Investigate != nil && meter.HasBudget(budget.ClassInvestigation) {
		stats, err := o.Investigate.Run(ctx, city, meter)
		report.recordPhaseErr("investigate", err)
		report.InvestigationRuns = stats
	}

	if o.Respond != nil {
		stats, err := o.Respond.Run(ctx, city, meter)
		report.recordPhaseErr("respond", err)
		report.ResponsesFound = stats
	}

	if o.Similarity != nil {
		sr, err := o.Similarity.Build(ctx, city.CityKey)
		report.recordPhaseErr("similarity", err)
		report.SimilarityEdges = sr.EdgesWritten
	}

	if o.Weave != nil {
		touched, err := o.Weave.Run(ctx, city.CityKey, meter)
		report.recordPhaseErr("weave", err)
		report.StoriesTouched = touched
	}

	if o.Discover != nil && meter.HasBudget(budget.ClassDiscovery) {
		n, err := o.Discover.Run(ctx, city, meter)
		report.recordPhaseErr("discover", err)
		report.DiscoveryQueries = n
	}

	report.SpentCents = meter.Snapshot().SpentCents
	report.EndedAt = time.Now()
	return report, nil
}

// classCosts layers a CityProfile's per-class overrides on top of the
// system defaults and converts to budget.Class keys.
func classCosts(b config.BudgetConfig) map[budget.Class]int {
	defaults := config.DefaultBudgetConfig().ClassOverride
	out := make(map[budget.Class]int, len(defaults))
	for k, v := range defaults {
		out[budget.Class(k)] = v
	}
	for k, v := range b.ClassOverride {
		out[budget.Class(k)] = v
	}
	return out
}

// runSchedulePhase selects due sources (§4.6 step 3); the selection
// itself is cheap enough to run inline rather than as its own
// goroutine stage.
func (o *Orchestrator) runSchedulePhase(ctx context.Context, city config.CityProfile, report *RunReport, now time.Time) []*graph.Source {
	due, err := selectDueSources(ctx, o.Store, city.CityKey, now)
	report.recordPhaseErr("schedule", err)
	report.SourcesSelected = len(due)
	return due
}

// fetchTally threads the running totals §4.6.1's tension_bonus needs
// across every source kind processed in a run.
type fetchTally struct {
	total   int
	tension int
}

// runFetchExtractPersistPhase implements §4.6 steps 4-5: fetch every due
// source concurrently through the capability matching its SourceType
// (bounded by Pool), then run extraction and the dedup stack
// sequentially per run — graph writes are serialized to preserve dedup
// semantics (§5).
func (o *Orchestrator) runFetchExtractPersistPhase(ctx context.Context, due []*graph.Source, city config.CityProfile, report *RunReport, meter *budget.Meter) {
	if len(due) == 0 {
		return
	}

	masker := o.Masker
	if masker == nil {
		masker = masking.NewService()
	}
	run := &persistRun{
		store:     o.Store,
		extractor: o.Extractor,
		dedup:     dedup.NewStack(o.Store, dedup.NewBatchSet(), dedup.NewEmbeddingCache(), meter),
		embed:     o.Embedder,
		meter:     meter,
		masker:    masker,
	}
	curated := curatedKeySet(city.CuratedSources)
	tally := &fetchTally{}

	web, rss, query, social := groupByFetchKind(due)

	o.fetchWeb(ctx, web, city, report, run, curated, tally)
	o.fetchRSS(ctx, rss, city, report, run, curated, tally)
	o.fetchQueries(ctx, query, city, report, run, curated, tally)
	o.fetchSocial(ctx, social, city, report, run, curated, tally)
}

func (o *Orchestrator) fetchWeb(ctx context.Context, sources []*graph.Source, city config.CityProfile, report *RunReport, run *persistRun, curated map[string]bool, tally *fetchTally) {
	if len(sources) == 0 {
		return
	}
	urls := make([]string, len(sources))
	byURL := make(map[string]*graph.Source, len(sources))
	for i, s := range sources {
		urls[i] = s.URL
		byURL[s.URL] = s
	}
	for _, res := range o.Pool.FetchURLs(ctx, o.Caps, urls) {
		source := byURL[res.Input]
		if res.Err != nil || res.Value == nil {
			o.finishFailedSource(ctx, report, curated, source, tally)
			continue
		}
		o.finishFetchedPage(ctx, report, run, curated, source, city, res.Value, tally)
	}
}

func (o *Orchestrator) fetchRSS(ctx context.Context, sources []*graph.Source, city config.CityProfile, report *RunReport, run *persistRun, curated map[string]bool, tally *fetchTally) {
	if len(sources) == 0 {
		return
	}
	urls := make([]string, len(sources))
	byURL := make(map[string]*graph.Source, len(sources))
	for i, s := range sources {
		urls[i] = s.URL
		byURL[s.URL] = s
	}
	for _, res := range o.Pool.FetchRSSFeeds(ctx, o.Caps, urls) {
		source := byURL[res.Input]
		if res.Err != nil {
			o.finishFailedSource(ctx, report, curated, source, tally)
			continue
		}
		now := time.Now()
		newSignals := 0
		report.SourcesFetched.Attempted++
		report.SourcesFetched.Succeeded++
		for _, item := range res.Value {
			counts, err := run.persistPage(ctx, itemToPage(item, now), source, city)
			if err != nil {
				report.recordPhaseErr("extract:"+source.ID, err)
			}
			o.tallyCounts(report, tally, counts)
			newSignals += counts.New
		}
		o.finishSuccessfulSource(ctx, report, curated, source, newSignals, tally, now)
	}
}

func (o *Orchestrator) fetchQueries(ctx context.Context, sources []*graph.Source, city config.CityProfile, report *RunReport, run *persistRun, curated map[string]bool, tally *fetchTally) {
	if len(sources) == 0 {
		return
	}
	queries := make([]string, len(sources))
	byQuery := make(map[string]*graph.Source, len(sources))
	for i, s := range sources {
		queries[i] = s.URL
		byQuery[s.URL] = s
	}
	for _, res := range o.Pool.SearchQueries(ctx, o.Caps, queries) {
		source := byQuery[res.Input]
		if res.Err != nil {
			o.finishFailedSource(ctx, report, curated, source, tally)
			continue
		}
		now := time.Now()
		newSignals := 0
		report.SourcesFetched.Attempted++
		report.SourcesFetched.Succeeded++
		for _, hit := range res.Value {
			counts, err := run.persistPage(ctx, hitToPage(hit, now), source, city)
			if err != nil {
				report.recordPhaseErr("extract:"+source.ID, err)
			}
			o.tallyCounts(report, tally, counts)
			newSignals += counts.New
		}
		o.finishSuccessfulSource(ctx, report, curated, source, newSignals, tally, now)
	}
}

func (o *Orchestrator) fetchSocial(ctx context.Context, grouped map[string][]*graph.Source, city config.CityProfile, report *RunReport, run *persistRun, curated map[string]bool, tally *fetchTally) {
	if len(grouped) == 0 {
		return
	}
	var targets []fetch.SocialTarget
	byKey := make(map[string]*graph.Source)
	for platform, sources := range grouped {
		for _, s := range sources {
			key := platform + ":" + s.URL
			targets = append(targets, fetch.SocialTarget{Platform: platform, Handle: s.URL, N: socialPostsPerFetch})
			byKey[key] = s
		}
	}
	for _, res := range o.Pool.FetchSocialAccounts(ctx, o.Caps, targets) {
		source := byKey[res.Input]
		if res.Err != nil {
			o.finishFailedSource(ctx, report, curated, source, tally)
			continue
		}
		now := time.Now()
		newSignals := 0
		report.SourcesFetched.Attempted++
		report.SourcesFetched.Succeeded++
		for _, post := range res.Value {
			counts, err := run.persistPage(ctx, postToPage(post, now), source, city)
			if err != nil {
				report.recordPhaseErr("extract:"+source.ID, err)
			}
			o.tallyCounts(report, tally, counts)
			newSignals += counts.New
		}
		o.finishSuccessfulSource(ctx, report, curated, source, newSignals, tally, now)
	}
}

func (o *Orchestrator) tallyCounts(report *RunReport, tally *fetchTally, counts persistCounts) {
	report.SignalsExtracted += counts.New + counts.Refreshed + counts.Corroborated
	report.SignalsPersisted += counts.New
	report.SignalsRefreshed += counts.Refreshed
	report.SignalsCorrobor += counts.Corroborated
	tally.total += counts.New
	tally.tension += counts.TensionNew
}

// finishFailedSource records a fetch failure and reschedules the source
// off its stale pre-run snapshot updated to reflect this failure.
func (o *Orchestrator) finishFailedSource(ctx context.Context, report *RunReport, curated map[string]bool, source *graph.Source, tally *fetchTally) {
	report.SourcesFetched.Attempted++
	report.SourcesFetched.Failed++
	failedAt := time.Now()
	if err := o.Store.RecordSourceRun(ctx, source.ID, 0, failedAt); err != nil {
		slog.Warn("scout: record source run failed", "source", source.ID, "error", err)
	}
	failed := *source
	failed.Scrapes++
	failed.LastFetchedAt = &failedAt
	failed.ConsecutiveEmptyRuns++
	delta, err := rescheduleSource(ctx, o.Store, &failed, curated, tally.tension, max(tally.total, 1), failedAt)
	if err != nil {
		slog.Warn("scout: reschedule source failed", "source", source.ID, "error", err)
		return
	}
	report.Deltas = append(report.Deltas, delta)
}

// finishSuccessfulSource records a successful run's yield and
// reschedules the source off a snapshot mirroring RecordSourceRun's
// effect, so the reschedule sees this run's outcome rather than the
// pre-run one.
func (o *Orchestrator) finishSuccessfulSource(ctx context.Context, report *RunReport, curated map[string]bool, source *graph.Source, newSignals int, tally *fetchTally, now time.Time) {
	if err := o.Store.RecordSourceRun(ctx, source.ID, newSignals, now); err != nil {
		slog.Warn("scout: record source run failed", "source", source.ID, "error", err)
	}
	scheduled := *source
	scheduled.Scrapes++
	scheduled.LastFetchedAt = &now
	if newSignals > 0 {
		scheduled.SignalsProduced += newSignals
		scheduled.LastProducedSignal = &now
		scheduled.ConsecutiveEmptyRuns = 0
	} else {
		scheduled.ConsecutiveEmptyRuns++
	}

	delta, err := rescheduleSource(ctx, o.Store, &scheduled, curated, tally.tension, max(tally.total, 1), now)
	if err != nil {
		slog.Warn("scout: reschedule source failed", "source", source.ID, "error", err)
		return
	}
	report.Deltas = append(report.Deltas, delta)
}

// finishFetchedPage is the web-fetch-kind analogue of finishSuccessfulSource
// for a single RawPage rather than a batch of items/hits/posts.
func (o *Orchestrator) finishFetchedPage(ctx context.Context, report *RunReport, run *persistRun, curated map[string]bool, source *graph.Source, city config.CityProfile, page *fetch.RawPage, tally *fetchTally) {
	report.SourcesFetched.Attempted++
	report.SourcesFetched.Succeeded++

	counts, err := run.persistPage(ctx, page, source, city)
	if err != nil {
		report.recordPhaseErr("extract:"+source.ID, err)
	}
	o.tallyCounts(report, tally, counts)

	o.finishSuccessfulSource(ctx, report, curated, source, counts.New, tally, time.Now())
}

// socialPostsPerFetch bounds how many posts FetchSocial pulls per
// account per run (§4.3's capability signature takes n explicitly).
const socialPostsPerFetch = 20
