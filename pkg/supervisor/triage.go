package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
)

// duplicateWeightLow and duplicateWeightHigh bound the near-duplicate
// band (§4.12): high enough that coincidence is implausible, low enough
// that the dedup stack wouldn't already have merged the pair.
const (
	duplicateWeightLow  = 0.85
	duplicateWeightHigh = 0.92

	misclassConfidenceCeiling = 0.5
	misclassMaxEvidenceCount  = 1
	lowConfHighVisCeiling     = 0.3
)

// candidate is one triage-pool suspect awaiting LLM validation.
type candidate struct {
	subjectKind     graph.SubjectKind
	subjectID       string
	category        graph.IssueCategory
	summary         string
	validateSignalID string
	detail          string
}

// buildTriagePool implements §4.12's four triage heuristics, skipping
// any signal older than watermark (never re-triage what a previous run
// already looked at).
func (s *Supervisor) buildTriagePool(ctx context.Context, city string, watermark time.Time) ([]candidate, error) {
	var pool []candidate

	signals, err := s.Store.ListSignalsSince(ctx, city, watermark)
	if err != nil {
		return nil, fmt.Errorf("list signals since watermark: %w", err)
	}
	for _, sig := range signals {
		if sig.Confidence < misclassConfidenceCeiling && sig.CorroborationCount <= misclassMaxEvidenceCount {
			pool = append(pool, candidate{
				subjectKind:      graph.SubjectSignal,
				subjectID:        sig.ID,
				category:         graph.IssueContradictsEvidence,
				summary:          sig.Title + ": " + sig.Summary,
				validateSignalID: sig.ID,
				detail:           "misclassification: low confidence, little corroboration",
			})
		}
	}

	stories, err := s.Store.ListActiveStories(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("list active stories: %w", err)
	}
	for _, st := range stories {
		if st.TypeDiversity >= 3 && st.EntityCount < config.SharedActorsThreshold {
			pool = append(pool, candidate{
				subjectKind:      graph.SubjectStory,
				subjectID:        st.ID,
				category:         graph.IssueLowDiversity,
				summary:          fmt.Sprintf("%s (type_diversity=%d, entity_count=%d)", st.Headline, st.TypeDiversity, st.EntityCount),
				validateSignalID: st.TensionSignalID,
				detail:           "incoherent story: diverse signal types share too few entities",
			})
		}
		if st.Status == graph.StoryStatusConfirmed {
			responders, err := s.storyMembers(ctx, st)
			if err != nil {
				return nil, err
			}
			for _, r := range responders {
				if r.Confidence < lowConfHighVisCeiling {
					pool = append(pool, candidate{
						subjectKind:      graph.SubjectSignal,
						subjectID:        r.ID,
						category:         graph.IssueEchoChamber,
						summary:          r.Title + ": " + r.Summary,
						validateSignalID: r.ID,
						detail:           "low-confidence signal inside a confirmed story",
					})
				}
			}
		}
	}

	edges, err := s.Store.ListSimilarityEdgesInRange(ctx, city, duplicateWeightLow, duplicateWeightHigh)
	if err != nil {
		return nil, fmt.Errorf("list similarity edges: %w", err)
	}
	for _, e := range edges {
		pool = append(pool, candidate{
			subjectKind:      graph.SubjectSignal,
			subjectID:        e.SignalAID,
			category:         graph.IssueDuplicateCandidate,
			summary:          fmt.Sprintf("similar to %s (weight=%.2f)", e.SignalBID, e.Weight),
			validateSignalID: e.SignalAID,
			detail:           fmt.Sprintf("near-duplicate of %s at weight %.2f", e.SignalBID, e.Weight),
		})
	}

	return pool, nil
}

// storyMembers resolves a Story to its anchor tension signal only, via
// GetSignal; the story's responder signals are not included, so the
// low-confidence check in buildTriagePool looks at the tension alone.
func (s *Supervisor) storyMembers(ctx context.Context, st *graph.Story) ([]*graph.Signal, error) {
	tension, err := s.Store.GetSignal(ctx, st.TensionSignalID)
	if err != nil {
		return nil, fmt.Errorf("get tension signal %s: %w", st.TensionSignalID, err)
	}
	return []*graph.Signal{tension}, nil
}

// validateAndPersist runs §4.12's adversarial LLM validation over the
// triage pool, up to config.DefaultMaxLLMChecks and the run's budget,
// and persists a ValidationIssue for every confirmed suspect, deduped
// against already-open issues for the same (subject, category).
func (s *Supervisor) validateAndPersist(ctx context.Context, city string, pool []candidate, meter *budget.Meter, report *Report) {
	open, err := s.Store.ListOpenIssues(ctx, city, "", time.Time{})
	if err != nil {
		open = nil
	}
	openKey := make(map[string]bool, len(open))
	for _, iss := range open {
		openKey[string(iss.SubjectKind)+"|"+iss.SubjectID+"|"+string(iss.Category)] = true
	}

	checks := 0
	for _, c := range pool {
		if checks >= config.DefaultMaxLLMChecks || !meter.HasBudget(budget.ClassValidation) {
			break
		}
		key := string(c.subjectKind) + "|" + c.subjectID + "|" + string(c.category)
		if openKey[key] {
			continue
		}

		excerpt := s.latestEvidenceExcerpt(ctx, c.validateSignalID)
		meter.Charge(budget.ClassValidation)
		checks++
		verdict, err := s.LLM.ValidateEvidence(ctx, c.summary, excerpt)
		if err != nil || verdict == nil || verdict.Valid {
			// LLMValidationRejected (§7): the suspect is discarded, no
			// issue created, when the model can't prove the defect.
			continue
		}

		iss := &graph.ValidationIssue{
			ID:          ulid.Make().String(),
			City:        city,
			SubjectKind: c.subjectKind,
			SubjectID:   c.subjectID,
			Category:    c.category,
			Detail:      c.detail + " — " + verdict.Reason,
		}
		if _, err := s.Store.CreateValidationIssue(ctx, iss); err == nil {
			report.IssuesCreated++
			openKey[key] = true
		}
	}
	report.LLMChecksPerformed = checks
}

func (s *Supervisor) latestEvidenceExcerpt(ctx context.Context, signalID string) string {
	if signalID == "" {
		return ""
	}
	ev, err := s.Store.ListEvidenceForSignal(ctx, signalID)
	if err != nil || len(ev) == 0 {
		return ""
	}
	return ev[0].RawExcerpt
}

// expireOldIssues implements §4.12 expiry: open issues older than
// config.IssueExpiryWindow move to status=expired.
func (s *Supervisor) expireOldIssues(ctx context.Context, city string, now time.Time, report *Report) {
	open, err := s.Store.ListOpenIssues(ctx, city, "", time.Time{})
	if err != nil {
		return
	}
	cutoff := now.Add(-config.IssueExpiryWindow)
	for _, iss := range open {
		if iss.CreatedAt.After(cutoff) {
			continue
		}
		if err := s.Store.ExpireIssue(ctx, iss.ID); err == nil {
			report.IssuesExpired++
		}
	}
}
