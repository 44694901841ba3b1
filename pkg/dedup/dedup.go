package dedup

import (
	"context"
	"fmt"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/graph"
)

// Store is the store surface the dedup stack needs, satisfied by
// *store.Postgres and *store.Memory.
type Store interface {
	titleStore
	vectorStore
}

// Outcome is what the three-layer dedup stack decided for a candidate
// signal (§4.5).
type Outcome int

const (
	// OutcomeDropExact: layer 1 within-batch exact match — do nothing.
	OutcomeDropExact Outcome = iota
	// OutcomeRefresh: an existing signal should have last_confirmed_active
	// bumped; no corroboration, no new Evidence beyond the refresh.
	OutcomeRefresh
	// OutcomeCorroborate: an existing signal gains corroboration from a
	// different source.
	OutcomeCorroborate
	// OutcomeNew: no match at any layer — persist as a new signal.
	OutcomeNew
)

// Decision carries the outcome plus the matched signal ID (empty for
// OutcomeNew).
type Decision struct {
	Outcome   Outcome
	MatchedID string
}

// Stack runs §4.5's three ordered layers for one Scout run.
type Stack struct {
	store  Store
	batch  *BatchSet
	cache  *EmbeddingCache
	budget *budget.Meter
}

// NewStack constructs a Stack. batch and cache are scoped to a single
// run (one Stack per Scout invocation); budget is process-wide.
func NewStack(store Store, batch *BatchSet, cache *EmbeddingCache, meter *budget.Meter) *Stack {
	return &Stack{store: store, batch: batch, cache: cache, budget: meter}
}

// Decide runs the candidate through layers 1-3 in order, short-
// circuiting as soon as an earlier layer resolves it. embedding is only
// consulted for layer 3, and only if it is non-empty (callers should
// charge and compute the embedding themselves before calling Decide,
// since §4.5 only charges for embeddings that reach layer 3 as "new").
func (s *Stack) Decide(ctx context.Context, variant graph.Variant, title, sourceURL string, embedding []float32) (Decision, error) {
	if s.batch.SeenExact(title, variant) {
		return Decision{Outcome: OutcomeDropExact}, nil
	}

	l2, matchID, err := checkLayer2(ctx, s.store, variant, title, sourceURL)
	if err != nil {
		return Decision{}, fmt.Errorf("dedup layer 2: %w", err)
	}
	switch l2 {
	case layer2Refresh:
		return Decision{Outcome: OutcomeRefresh, MatchedID: matchID}, nil
	case layer2Corroborate:
		return Decision{Outcome: OutcomeCorroborate, MatchedID: matchID}, nil
	}

	if len(embedding) == 0 {
		return Decision{Outcome: OutcomeNew}, nil
	}

	l3, l3MatchID, err := checkLayer3(ctx, s.store, s.cache, variant, embedding, sourceURL)
	if err != nil {
		return Decision{}, fmt.Errorf("dedup layer 3: %w", err)
	}
	switch l3 {
	case layer3RefreshOnly:
		return Decision{Outcome: OutcomeRefresh, MatchedID: l3MatchID}, nil
	case layer3Corroborate:
		return Decision{Outcome: OutcomeCorroborate, MatchedID: l3MatchID}, nil
	default:
		return Decision{Outcome: OutcomeNew}, nil
	}
}

// RememberEmbedding records a newly-persisted signal's embedding in the
// in-batch cache so later candidates in the same run can dedup against
// it immediately (§4.5 layer 3).
func (s *Stack) RememberEmbedding(variant graph.Variant, signalID string, embedding []float32, sourceURL string) {
	s.cache.Put(variant, signalID, embedding, entityDomain(sourceURL))
}
