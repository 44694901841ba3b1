// Package scout implements the Scout orchestrator (§4.6): one run
// against one city profile, driving schedule → fetch/extract → persist
// → investigate → respond → similarity → weave → discover in order
// under a single ScoutLock.
package scout

import (
	"errors"
	"time"
)

// ErrLockHeld is returned when another run already holds ScoutLock(city)
// for the requested city; callers should treat this as a non-fatal skip
// (§7: LockHeld → "Non-fatal; skip the run").
var ErrLockHeld = errors.New("scout: lock held")

// PhaseStats counts one phase's outcome for the run report.
type PhaseStats struct {
	Attempted int
	Succeeded int
	Failed    int
	FirstErr  error
}

// SourceDelta reports how one source's schedule changed during the run.
type SourceDelta struct {
	SourceID        string
	SignalsProduced int
	NewWeight       float64
	NextDueAt       time.Time
	Deactivated     bool
}

// RunReport summarizes one Scout run (§6 "Outputs the core exposes").
type RunReport struct {
	City      string
	StartedAt time.Time
	EndedAt   time.Time
	Partial   bool

	Reaped            int
	SourcesSelected   int
	SourcesFetched    PhaseStats
	SignalsExtracted  int
	SignalsPersisted  int
	SignalsRefreshed  int
	SignalsCorrobor   int
	InvestigationRuns PhaseStats
	ResponsesFound    PhaseStats
	SimilarityEdges   int
	StoriesTouched    int
	DiscoveryQueries  int

	SpentCents int64
	Deltas     []SourceDelta

	PhaseErrors map[string]error
}

func newRunReport(city string, start time.Time) *RunReport {
	return &RunReport{
		City:        city,
		StartedAt:   start,
		PhaseErrors: make(map[string]error),
	}
}

func (r *RunReport) recordPhaseErr(phase string, err error) {
	if err == nil {
		return
	}
	r.Partial = true
	r.PhaseErrors[phase] = err
}
