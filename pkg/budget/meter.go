// Package budget implements the process-wide soft-cap cost meter that
// gates expensive operations (LLM extraction, embeddings, web search) per
// scout run (§4.2).
package budget

import (
	"sync"
)

// Class names the operation classes the meter tracks. Per-class costs come
// from the map passed to NewMeter; a class absent from it costs 1 cent.
type Class string

const (
	ClassExtraction    Class = "extraction"
	ClassEmbedding     Class = "embedding"
	ClassWebSearch     Class = "web_search"
	ClassInvestigation Class = "investigation"
	ClassDiscovery     Class = "discovery"
	ClassSynthesis     Class = "synthesis"
	ClassValidation    Class = "validation"
)

// Snapshot is a point-in-time read of the meter's state (§4.2 snapshot).
type Snapshot struct {
	SpentCents      int64
	RemainingCents  int64
	PerClassTotals  map[Class]int64
}

// Meter is a monotonic cents counter with a soft cap: charging below
// zero is permitted, so every caller must check HasBudget first and have
// an explicit skip-path when it returns false.
type Meter struct {
	mu         sync.Mutex
	capCents   int64
	spentCents int64
	classCosts map[Class]int
	perClass   map[Class]int64
}

// NewMeter constructs a Meter with the given soft cap and per-class costs
// (cents). Classes absent from classCosts default to a cost of 1 cent.
func NewMeter(capCents int64, classCosts map[Class]int) *Meter {
	costs := make(map[Class]int, len(classCosts))
	for k, v := range classCosts {
		costs[k] = v
	}
	return &Meter{
		capCents:   capCents,
		classCosts: costs,
		perClass:   make(map[Class]int64),
	}
}

func (m *Meter) costOf(class Class) int64 {
	if c, ok := m.classCosts[class]; ok {
		return int64(c)
	}
	return 1
}

// HasBudget reports whether charging class would not exceed the cap.
// It does not reserve budget; callers must still handle a losing race
// against a concurrent Charge (the meter is advisory, not a blocking
// resource).
func (m *Meter) HasBudget(class Class) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spentCents+m.costOf(class) <= m.capCents
}

// Charge atomically deducts class's cost and returns the new remaining
// balance (which may be negative — the cap is a soft cap).
func (m *Meter) Charge(class Class) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	cost := m.costOf(class)
	m.spentCents += cost
	m.perClass[class] += cost
	return m.capCents - m.spentCents
}

// Remaining returns the current remaining balance without charging.
func (m *Meter) Remaining() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capCents - m.spentCents
}

// Snapshot returns a copy of the meter's current state (§4.2 snapshot).
func (m *Meter) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[Class]int64, len(m.perClass))
	for k, v := range m.perClass {
		totals[k] = v
	}
	return Snapshot{
		SpentCents:     m.spentCents,
		RemainingCents: m.capCents - m.spentCents,
		PerClassTotals: totals,
	}
}
