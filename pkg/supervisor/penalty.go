package supervisor

import (
	"context"
	"math"
	"time"

	"github.com/civic-scout/scout/pkg/graph"
)

// sourcePenaltyBase and its clamp bounds implement §4.12's feedback
// formula: weight *= 0.7^open_issue_count, floored so a source never
// goes fully dark from triage alone.
const (
	sourcePenaltyBase = 0.7
	sourcePenaltyFloor = 0.1
	sourcePenaltyCeil  = 1.0
)

// echoTypeDiversityCap and echoEntityCountCap normalize the echo-score
// inputs the same way pkg/story's computeEnergy normalizes its inputs:
// ratio against a plausible cap, clamped to 1.0.
const (
	echoTypeDiversityCap = 5.0
	echoEntityCountCap   = 10.0
	echoMinSignalCount   = 5
)

// applySourcePenalties implements §4.12's source-quality feedback: a
// source accrues a multiplicative penalty for every open issue traced
// back to it, and is reset to full weight once it has none. Skipped
// entirely by the caller while ScoutLock is held for this city.
func (s *Supervisor) applySourcePenalties(ctx context.Context, city string, report *Report) {
	open, err := s.Store.ListOpenIssues(ctx, city, "", time.Time{})
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, iss := range open {
		sourceID := s.resolveOwningSource(ctx, iss)
		if sourceID == "" {
			continue
		}
		counts[sourceID]++
	}

	sources, err := s.Store.ListActiveSources(ctx, city)
	if err != nil {
		return
	}
	for _, src := range sources {
		n, flagged := counts[src.ID]
		if flagged && n > 0 {
			penalty := math.Pow(sourcePenaltyBase, float64(n))
			if penalty < sourcePenaltyFloor {
				penalty = sourcePenaltyFloor
			}
			if penalty > sourcePenaltyCeil {
				penalty = sourcePenaltyCeil
			}
			_ = s.Store.SetSourceQualityPenalty(ctx, src.ID, penalty)
			continue
		}
		if src.QualityPenalty != nil && *src.QualityPenalty < sourcePenaltyCeil {
			if err := s.Store.SetSourceQualityPenalty(ctx, src.ID, sourcePenaltyCeil); err == nil {
				report.SourcesReset++
			}
		}
	}
}

// resolveOwningSource traces a ValidationIssue back to the Source it
// reflects on. A SubjectSource issue names the source directly; a
// SubjectSignal issue is attributed to the source behind its most
// recent Evidence. SubjectStory issues have no single owning source
// and are excluded from the penalty pass.
func (s *Supervisor) resolveOwningSource(ctx context.Context, iss *graph.ValidationIssue) string {
	switch iss.SubjectKind {
	case graph.SubjectSource:
		return iss.SubjectID
	case graph.SubjectSignal:
		ev, err := s.Store.ListEvidenceForSignal(ctx, iss.SubjectID)
		if err != nil || len(ev) == 0 {
			return ""
		}
		return ev[0].SourceID
	default:
		return ""
	}
}

// detectEchoStories implements §4.12's echo-chamber detection: every
// story with at least echoMinSignalCount signals gets an echo score,
// highest when its type and entity diversity are both low (likely
// self-reinforcing rather than independently corroborated). Every story
// scored counts toward report.EchoFlaggedStories, whatever its score.
func (s *Supervisor) detectEchoStories(ctx context.Context, city string, report *Report) {
	stories, err := s.Store.ListActiveStories(ctx, city)
	if err != nil {
		return
	}
	for _, st := range stories {
		if st.SignalCount < echoMinSignalCount {
			continue
		}
		diversity := math.Min(float64(st.TypeDiversity)/echoTypeDiversityCap, 1.0)
		entities := math.Min(float64(st.EntityCount)/echoEntityCountCap, 1.0)
		score := (1 - diversity) * (1 - entities)
		if err := s.Store.SetStoryEchoScore(ctx, st.ID, score); err == nil {
			report.EchoFlaggedStories++
		}
	}
}
