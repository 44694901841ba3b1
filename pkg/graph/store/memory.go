package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/civic-scout/scout/pkg/graph"
)

// Memory is an in-process Store implementation backed by maps and a
// mutex. It exists so unit tests for the scout, dedup, and supervisor
// packages can exercise real Store semantics without a Postgres
// container.
type Memory struct {
	mu sync.Mutex

	sources    map[string]*graph.Source
	signals    map[string]*graph.Signal
	evidence   map[string]*graph.Evidence
	actors     map[string]*graph.Actor
	stories    map[string]*graph.Story
	snapshots  map[string]*graph.ClusterSnapshot
	issues     map[string]*graph.ValidationIssue
	locks      map[string]*graph.Lock
	respondsTo []respondsToEdge
	contains   map[string]map[string]bool
	actedIn    map[string]map[string]bool
	similarity map[string]float64

	supervisorStates map[string]*graph.SupervisorState
}

type respondsToEdge struct {
	ResponderID   string
	TensionID     string
	MatchStrength float64
	Explanation   string
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sources:    make(map[string]*graph.Source),
		signals:    make(map[string]*graph.Signal),
		evidence:   make(map[string]*graph.Evidence),
		actors:     make(map[string]*graph.Actor),
		stories:    make(map[string]*graph.Story),
		snapshots:  make(map[string]*graph.ClusterSnapshot),
		issues:     make(map[string]*graph.ValidationIssue),
		locks:      make(map[string]*graph.Lock),
		contains:   make(map[string]map[string]bool),
		actedIn:    make(map[string]map[string]bool),
		similarity: make(map[string]float64),

		supervisorStates: make(map[string]*graph.SupervisorState),
	}
}

func (m *Memory) Close() error { return nil }

func cloneSource(s *graph.Source) *graph.Source { c := *s; return &c }
func cloneSignal(s *graph.Signal) *graph.Signal { c := *s; return &c }
func cloneStory(s *graph.Story) *graph.Story    { c := *s; return &c }

// --- Sources ---

func (m *Memory) FindSourceByCanonicalKey(ctx context.Context, city, key string) (*graph.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if s.City == city && s.CanonicalKey == key {
			return cloneSource(s), nil
		}
	}
	return nil, graph.ErrNotFound
}

func (m *Memory) UpsertSource(ctx context.Context, s *graph.Source) (*graph.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sources {
		if existing.City == s.City && existing.CanonicalKey == s.CanonicalKey {
			existing.URL = s.URL
			return cloneSource(existing), nil
		}
	}
	if s.Weight == 0 {
		s.Weight = 1.0
	}
	s.Active = true
	s.CreatedAt = time.Now()
	m.sources[s.ID] = s
	return cloneSource(s), nil
}

func (m *Memory) SetSourceActive(ctx context.Context, sourceID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sources[sourceID]; ok {
		s.Active = active
	}
	return nil
}

func (m *Memory) SetSourceWeight(ctx context.Context, sourceID string, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if weight < 0.1 {
		weight = 0.1
	}
	if weight > 1.0 {
		weight = 1.0
	}
	if s, ok := m.sources[sourceID]; ok {
		s.Weight = weight
	}
	return nil
}

func (m *Memory) SetSourceQualityPenalty(ctx context.Context, sourceID string, penalty float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if penalty < 0.1 {
		penalty = 0.1
	}
	if penalty > 1.0 {
		penalty = 1.0
	}
	if s, ok := m.sources[sourceID]; ok {
		s.QualityPenalty = &penalty
	}
	return nil
}

func (m *Memory) SetSourceSchedule(ctx context.Context, sourceID string, weight float64, nextDueAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if weight < 0.1 {
		weight = 0.1
	}
	if weight > 1.0 {
		weight = 1.0
	}
	if s, ok := m.sources[sourceID]; ok {
		s.Weight = weight
		due := nextDueAt
		s.NextDueAt = &due
	}
	return nil
}

func (m *Memory) RecordSourceRun(ctx context.Context, sourceID string, signalsProduced int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[sourceID]
	if !ok {
		return nil
	}
	s.Scrapes++
	fetched := at
	s.LastFetchedAt = &fetched
	if signalsProduced > 0 {
		produced := at
		s.LastProducedSignal = &produced
		s.SignalsProduced += signalsProduced
		s.ConsecutiveEmptyRuns = 0
	} else {
		s.ConsecutiveEmptyRuns++
	}
	return nil
}

func (m *Memory) ListActiveSources(ctx context.Context, city string) ([]*graph.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Source
	for _, s := range m.sources {
		if s.City == city && s.Active {
			out = append(out, cloneSource(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListDueSources(ctx context.Context, city string, now time.Time) ([]*graph.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Source
	for _, s := range m.sources {
		if s.City != city || !s.Active {
			continue
		}
		if s.NextDueAt == nil || !s.NextDueAt.After(now) {
			out = append(out, cloneSource(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListDiscoverySources(ctx context.Context, city string) ([]*graph.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Source
	for _, s := range m.sources {
		if s.City == city && s.DiscoveryMethod != "" {
			out = append(out, cloneSource(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Signals ---

func (m *Memory) CreateSignal(ctx context.Context, s *graph.Signal, ev *graph.Evidence) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.LastConfirmedActive.IsZero() {
		s.LastConfirmedActive = s.CreatedAt
	}
	if s.CorroborationCount == 0 {
		s.CorroborationCount = 0
	}
	if s.SourceDiversity == 0 {
		s.SourceDiversity = 1
	}
	m.signals[s.ID] = s
	if ev != nil {
		ev.SignalID = s.ID
		m.evidence[ev.ID] = ev
	}
	return s.ID, nil
}

func (m *Memory) GetSignal(ctx context.Context, id string) (*graph.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return nil, graph.ErrNotFound
	}
	return cloneSignal(s), nil
}

func (m *Memory) AddEvidence(ctx context.Context, signalID string, ev *graph.Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.SignalID = signalID
	if ev.FetchedAt.IsZero() {
		ev.FetchedAt = time.Now()
	}
	m.evidence[ev.ID] = ev
	return nil
}

func (m *Memory) ListEvidenceForSignal(ctx context.Context, signalID string) ([]*graph.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Evidence
	for _, e := range m.evidence {
		if e.SignalID == signalID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.After(out[j].FetchedAt) })
	return out, nil
}

func (m *Memory) FindSignalsByEvidence(ctx context.Context, url string, contentHash uint64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, e := range m.evidence {
		if e.URL != url || e.ContentHash != contentHash {
			continue
		}
		if !seen[e.SignalID] {
			seen[e.SignalID] = true
			ids = append(ids, e.SignalID)
		}
	}
	return ids, nil
}

func entityDomain(url string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func (m *Memory) RefreshSignal(ctx context.Context, signalID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.signals[signalID]; ok {
		s.LastConfirmedActive = at
	}
	return nil
}

func (m *Memory) Corroborate(ctx context.Context, signalID string, newEvidenceEntityDomain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[signalID]
	if !ok {
		return graph.ErrNotFound
	}
	s.CorroborationCount++
	s.LastConfirmedActive = time.Now()

	domains := map[string]bool{}
	for _, e := range m.evidence {
		if e.SignalID == signalID {
			domains[entityDomain(e.URL)] = true
		}
	}
	if newEvidenceEntityDomain != "" {
		domains[newEvidenceEntityDomain] = true
	}
	s.SourceDiversity = len(domains)
	return nil
}

func (m *Memory) UpdateSignalEmbedding(ctx context.Context, signalID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[signalID]
	if !ok {
		return graph.ErrNotFound
	}
	s.Embedding = embedding
	return nil
}

func (m *Memory) MarkInvestigated(ctx context.Context, signalID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[signalID]
	if !ok {
		return graph.ErrNotFound
	}
	s.InvestigatedAt = &at
	return nil
}

func (m *Memory) SetQualityPenalty(ctx context.Context, signalID string, penalty float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[signalID]
	if !ok {
		return graph.ErrNotFound
	}
	if penalty < 0.1 {
		penalty = 0.1
	}
	if penalty > 1.0 {
		penalty = 1.0
	}
	s.QualityPenalty = &penalty
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (m *Memory) FindDuplicateByVector(ctx context.Context, variant graph.Variant, embedding []float32, k int, threshold float64) (*graph.DuplicateMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := (*graph.DuplicateMatch)(nil)
	for _, s := range m.signals {
		if s.Variant != variant || len(s.Embedding) == 0 {
			continue
		}
		c := cosine(s.Embedding, embedding)
		if c >= threshold && (best == nil || c > best.Cosine) {
			best = &graph.DuplicateMatch{ID: s.ID, Cosine: c}
		}
	}
	return best, nil
}

// FindDuplicateByTitle implements store.Store (§4.5 layer 2). Mirrors
// Postgres.FindDuplicateByTitle's two independent matches: a same-
// source_url, prefix-matching title wins as a refresh; only absent that
// does a global exact-title match count as a corroborate candidate.
func (m *Memory) FindDuplicateByTitle(ctx context.Context, variant graph.Variant, normalizedTitle, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if url != "" {
		for _, s := range m.signals {
			if s.Variant != variant || s.SourceURL != url {
				continue
			}
			if strings.HasPrefix(strings.ToLower(s.Title), normalizedTitle) {
				return s.ID, nil
			}
		}
	}

	for _, s := range m.signals {
		if s.Variant != variant {
			continue
		}
		if strings.EqualFold(s.Title, normalizedTitle) {
			return s.ID, nil
		}
	}
	return "", nil
}

func (m *Memory) ListSignalsByVariant(ctx context.Context, city string, variant graph.Variant) ([]*graph.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Signal
	for _, s := range m.signals {
		if s.City == city && s.Variant == variant {
			out = append(out, cloneSignal(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListSignalsSince(ctx context.Context, city string, since time.Time) ([]*graph.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Signal
	for _, s := range m.signals {
		if s.City == city && !s.CreatedAt.Before(since) {
			out = append(out, cloneSignal(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListEmbeddedSignals(ctx context.Context, city string) ([]*graph.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Signal
	for _, s := range m.signals {
		if s.City == city && len(s.Embedding) > 0 {
			out = append(out, cloneSignal(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListUncorroborated(ctx context.Context, city string, variant graph.Variant, cooldown time.Duration, limit int) ([]*graph.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-cooldown)
	var out []*graph.Signal
	for _, s := range m.signals {
		if s.City != city || s.Variant != variant {
			continue
		}
		if s.InvestigatedAt != nil && s.InvestigatedAt.After(cutoff) {
			continue
		}
		out = append(out, cloneSignal(s))
	}
	sort.Slice(out, func(i, j int) bool {
		pi := investigationPriority(out[i])
		pj := investigationPriority(out[j])
		if pi != pj {
			return pi > pj
		}
		return sensitivityRank(out[i].Sensitivity) > sensitivityRank(out[j].Sensitivity)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) responseCount(signalID string) int {
	n := 0
	for _, e := range m.respondsTo {
		if e.TensionID == signalID {
			n++
		}
	}
	return n
}

func (m *Memory) ListResponders(ctx context.Context, tensionID string) ([]*graph.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Signal
	for _, e := range m.respondsTo {
		if e.TensionID != tensionID {
			continue
		}
		if s, ok := m.signals[e.ResponderID]; ok {
			out = append(out, cloneSignal(s))
		}
	}
	return out, nil
}

func (m *Memory) ListUnrespondedTensions(ctx context.Context, city string) ([]*graph.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Signal
	for _, s := range m.signals {
		if s.City != city || s.Variant != graph.VariantTension {
			continue
		}
		if m.responseCount(s.ID) == 0 {
			out = append(out, cloneSignal(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return severityRank(out[i].Severity) > severityRank(out[j].Severity) })
	return out, nil
}

func (m *Memory) ListTensionBriefs(ctx context.Context, city string) ([]graph.TensionBrief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []graph.TensionBrief
	for _, s := range m.signals {
		if s.City != city || s.Variant != graph.VariantTension {
			continue
		}
		out = append(out, graph.TensionBrief{Signal: cloneSignal(s), ResponseCount: m.responseCount(s.ID)})
	}
	sort.Slice(out, func(i, j int) bool {
		iUnmet, jUnmet := out[i].ResponseCount == 0, out[j].ResponseCount == 0
		if iUnmet != jUnmet {
			return iUnmet
		}
		return severityRank(out[i].Signal.Severity) > severityRank(out[j].Signal.Severity)
	})
	return out, nil
}

func severityRank(severity *string) int {
	if severity == nil {
		return -1
	}
	switch *severity {
	case "critical":
		return 3
	case "high":
		return 2
	case "medium":
		return 1
	case "low":
		return 0
	default:
		return -1
	}
}

func investigationPriority(s *graph.Signal) float64 {
	c := s.CorroborationCount
	if c > 10 {
		c = 10
	}
	return 1 - float64(c)/10.0
}

func sensitivityRank(s graph.Sensitivity) int {
	switch s {
	case graph.SensitivitySensitive:
		return 2
	case graph.SensitivityElevated:
		return 1
	default:
		return 0
	}
}

// --- Edges ---

func (m *Memory) LinkActor(ctx context.Context, signalID, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.actedIn[actorID] == nil {
		m.actedIn[actorID] = make(map[string]bool)
	}
	m.actedIn[actorID][signalID] = true
	return nil
}

func (m *Memory) LinkRespondsTo(ctx context.Context, responderID, tensionID string, matchStrength float64, explanation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.respondsTo {
		if e.ResponderID == responderID && e.TensionID == tensionID {
			m.respondsTo[i].MatchStrength = matchStrength
			m.respondsTo[i].Explanation = explanation
			return nil
		}
	}
	m.respondsTo = append(m.respondsTo, respondsToEdge{responderID, tensionID, matchStrength, explanation})
	return nil
}

func (m *Memory) LinkContains(ctx context.Context, storyID, signalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.contains[storyID] == nil {
		m.contains[storyID] = make(map[string]bool)
	}
	m.contains[storyID][signalID] = true
	return nil
}

func simKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (m *Memory) UpsertSimilarityEdge(ctx context.Context, aID, bID string, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.similarity[simKey(aID, bID)] = weight
	return nil
}

func (m *Memory) ListSimilarityEdgesInRange(ctx context.Context, city string, minWeight, maxWeight float64) ([]graph.SimilarityEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []graph.SimilarityEdge
	for key, weight := range m.similarity {
		if weight < minWeight || weight >= maxWeight {
			continue
		}
		parts := strings.SplitN(key, "|", 2)
		if len(parts) != 2 {
			continue
		}
		a, okA := m.signals[parts[0]]
		b, okB := m.signals[parts[1]]
		if !okA || !okB || a.City != city || b.City != city {
			continue
		}
		out = append(out, graph.SimilarityEdge{SignalAID: parts[0], SignalBID: parts[1], Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignalAID < out[j].SignalAID })
	return out, nil
}

func (m *Memory) FindOrCreateActor(ctx context.Context, city, canonicalName string, domains, socialURLs []string) (*graph.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actors {
		if a.City == city && a.CanonicalName == canonicalName {
			a.Domains = unionStrings(a.Domains, domains)
			a.SocialURLs = unionStrings(a.SocialURLs, socialURLs)
			return a, nil
		}
	}
	a := &graph.Actor{ID: newID("actor"), City: city, CanonicalName: canonicalName, Domains: domains, SocialURLs: socialURLs}
	m.actors[a.ID] = a
	return a, nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ListUntrackedActors implements store.Store.
func (m *Memory) ListUntrackedActors(ctx context.Context, city string) ([]*graph.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tracked := make(map[string]bool)
	for _, s := range m.sources {
		if s.EntityID != "" {
			tracked[s.EntityID] = true
		}
	}
	var out []*graph.Actor
	for _, a := range m.actors {
		if a.City == city && !tracked[a.ID] {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

// ListActors implements store.Store (§4.12 auto-fix: the full per-city
// actor roster, scanned for near-duplicate canonical names to merge).
func (m *Memory) ListActors(ctx context.Context, city string) ([]*graph.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Actor
	for _, a := range m.actors {
		if a.City == city {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) MergeActors(ctx context.Context, keepID, dropID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep, ok := m.actors[keepID]
	if !ok {
		return graph.ErrNotFound
	}
	drop, ok := m.actors[dropID]
	if !ok {
		return graph.ErrNotFound
	}
	seen := map[string]bool{}
	for _, d := range append(keep.Domains, drop.Domains...) {
		seen[d] = true
	}
	keep.Domains = keep.Domains[:0]
	for d := range seen {
		keep.Domains = append(keep.Domains, d)
	}

	seenURLs := map[string]bool{}
	for _, u := range append(keep.SocialURLs, drop.SocialURLs...) {
		seenURLs[u] = true
	}
	keep.SocialURLs = keep.SocialURLs[:0]
	for u := range seenURLs {
		keep.SocialURLs = append(keep.SocialURLs, u)
	}
	if m.actedIn[dropID] != nil {
		if m.actedIn[keepID] == nil {
			m.actedIn[keepID] = make(map[string]bool)
		}
		for sig := range m.actedIn[dropID] {
			m.actedIn[keepID][sig] = true
		}
		delete(m.actedIn, dropID)
	}
	delete(m.actors, dropID)
	return nil
}

// --- Stories ---

func (m *Memory) CreateStory(ctx context.Context, st *graph.Story) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	if st.FirstSeen.IsZero() {
		st.FirstSeen = st.CreatedAt
	}
	if st.LastUpdated.IsZero() {
		st.LastUpdated = st.CreatedAt
	}
	if st.Status == "" {
		st.Status = graph.StoryStatusEmerging
	}
	m.stories[st.ID] = st
	return st.ID, nil
}

func (m *Memory) GetStory(ctx context.Context, id string) (*graph.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return nil, graph.ErrNotFound
	}
	return cloneStory(s), nil
}

func (m *Memory) ListStoriesForTension(ctx context.Context, tensionID string) ([]*graph.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Story
	for _, s := range m.stories {
		if s.TensionSignalID == tensionID {
			out = append(out, cloneStory(s))
		}
	}
	return out, nil
}

func (m *Memory) ListActiveStories(ctx context.Context, city string) ([]*graph.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Story
	for _, s := range m.stories {
		if s.City == city && !s.IsArchived() {
			out = append(out, cloneStory(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateStoryMetrics(ctx context.Context, storyID string, metrics graph.StoryMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[storyID]
	if !ok {
		return graph.ErrNotFound
	}
	s.Status = metrics.Status
	s.SignalCount = metrics.SignalCount
	s.AskCount = metrics.AskCount
	s.GiveCount = metrics.GiveCount
	s.EventCount = metrics.EventCount
	s.EntityCount = metrics.EntityCount
	s.SourceCount = metrics.SourceCount
	s.TypeDiversity = metrics.TypeDiversity
	s.GapScore = metrics.GapScore
	s.GapVelocity = metrics.GapVelocity
	s.CentroidLat = metrics.CentroidLat
	s.CentroidLng = metrics.CentroidLng
	s.Sensitivity = metrics.Sensitivity
	s.Velocity = metrics.Velocity
	s.Energy = metrics.Energy
	s.Heat = metrics.Heat
	s.ResponseCount = metrics.ResponseCount
	s.LastUpdated = metrics.RewovenAt
	s.LastRewovenAt = metrics.RewovenAt
	return nil
}

func (m *Memory) UpdateStorySynthesis(ctx context.Context, storyID string, headline string, lede, narrative, category, arc, actionGuidance *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[storyID]
	if !ok {
		return graph.ErrNotFound
	}
	s.Headline = headline
	s.Lede = lede
	s.Narrative = narrative
	s.Category = category
	s.Arc = arc
	s.ActionGuidance = actionGuidance
	return nil
}

func (m *Memory) ArchiveStory(ctx context.Context, storyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[storyID]
	if !ok {
		return graph.ErrNotFound
	}
	archived := "archived"
	s.Arc = &archived
	return nil
}

func (m *Memory) SetStoryEchoScore(ctx context.Context, storyID string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[storyID]
	if !ok {
		return graph.ErrNotFound
	}
	s.EchoScore = &score
	return nil
}

func (m *Memory) SnapshotCluster(ctx context.Context, storyID string, memberSignalIDs []string, heat float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := newID("snap")
	m.snapshots[id] = &graph.ClusterSnapshot{ID: id, StoryID: storyID, MemberSignalIDs: memberSignalIDs, Heat: heat, TakenAt: at}
	return nil
}

func (m *Memory) ListSnapshots(ctx context.Context, storyID string, since time.Time) ([]*graph.ClusterSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.ClusterSnapshot
	for _, s := range m.snapshots {
		if s.StoryID == storyID && !s.TakenAt.Before(since) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.Before(out[j].TakenAt) })
	return out, nil
}

// --- Validation issues ---

func (m *Memory) CreateValidationIssue(ctx context.Context, iss *graph.ValidationIssue) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iss.Status = graph.IssueStatusOpen
	if iss.CreatedAt.IsZero() {
		iss.CreatedAt = time.Now()
	}
	m.issues[iss.ID] = iss
	return iss.ID, nil
}

func (m *Memory) ListOpenIssues(ctx context.Context, city string, subjectKind graph.SubjectKind, since time.Time) ([]*graph.ValidationIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.ValidationIssue
	for _, iss := range m.issues {
		if iss.City != city || iss.Status != graph.IssueStatusOpen || iss.CreatedAt.Before(since) {
			continue
		}
		if subjectKind != "" && iss.SubjectKind != subjectKind {
			continue
		}
		out = append(out, iss)
	}
	return out, nil
}

func (m *Memory) ExpireIssue(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	iss, ok := m.issues[id]
	if !ok {
		return graph.ErrNotFound
	}
	iss.Status = graph.IssueStatusExpired
	now := time.Now()
	iss.ResolvedAt = &now
	return nil
}

func (m *Memory) PurgeResolvedIssues(ctx context.Context, city string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, iss := range m.issues {
		if iss.City != city {
			continue
		}
		if iss.Status != graph.IssueStatusResolved && iss.Status != graph.IssueStatusExpired {
			continue
		}
		if iss.ResolvedAt == nil || !iss.ResolvedAt.Before(cutoff) {
			continue
		}
		delete(m.issues, id)
		n++
	}
	return n, nil
}

// --- Maintenance ---

var reapWindows = map[graph.Variant]time.Duration{
	graph.VariantGathering: 24 * time.Hour,
	graph.VariantAid:       150 * 24 * time.Hour,
	graph.VariantNeed:      30 * 24 * time.Hour,
	graph.VariantNotice:    30 * 24 * time.Hour,
	graph.VariantTension:   150 * 24 * time.Hour,
}

func (m *Memory) ReapExpired(ctx context.Context, city string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.signals {
		if s.City != city {
			continue
		}
		window := reapWindows[s.Variant]
		if window == 0 {
			window = 30 * 24 * time.Hour
		}
		if now.Sub(s.LastConfirmedActive) > window {
			delete(m.signals, id)
			for evID, ev := range m.evidence {
				if ev.SignalID == id {
					delete(m.evidence, evID)
				}
			}
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteEmptySignals(ctx context.Context, city string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.signals {
		if s.City == city && strings.TrimSpace(s.Title) == "" {
			delete(m.signals, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteOrphanedEvidence(ctx context.Context, city string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, ev := range m.evidence {
		if _, ok := m.signals[ev.SignalID]; !ok {
			delete(m.evidence, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) NullFakeCityCenterCoords(ctx context.Context, city string, centerLat, centerLng, epsilonDegrees float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.signals {
		if s.City != city || s.Lat == nil || s.Lng == nil {
			continue
		}
		if math.Abs(*s.Lat-centerLat) < epsilonDegrees && math.Abs(*s.Lng-centerLng) < epsilonDegrees {
			s.Lat, s.Lng = nil, nil
			precision := graph.GeoPrecisionCity
			s.GeoPrecision = precision
			n++
		}
	}
	return n, nil
}

// --- Locks ---

func (m *Memory) lockKey(city string, kind graph.LockKind) string { return city + "|" + string(kind) }

func (m *Memory) AcquireLock(ctx context.Context, city string, kind graph.LockKind, runID string, now time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.lockKey(city, kind)
	existing, held := m.locks[key]
	if held && existing.ExpiresAt.After(now) {
		return graph.ErrConflict
	}
	m.locks[key] = &graph.Lock{City: city, Kind: kind, HolderRunID: runID, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	return nil
}

func (m *Memory) ReleaseLock(ctx context.Context, city string, kind graph.LockKind, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.lockKey(city, kind)
	if existing, ok := m.locks[key]; ok && existing.HolderRunID == runID {
		delete(m.locks, key)
	}
	return nil
}

func (m *Memory) IsLocked(ctx context.Context, city string, kind graph.LockKind, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, held := m.locks[m.lockKey(city, kind)]
	return held && existing.ExpiresAt.After(now), nil
}

// --- Supervisor watermark ---

func (m *Memory) GetOrCreateSupervisorState(ctx context.Context, city string) (*graph.SupervisorState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.supervisorStates[city]; ok {
		c := *st
		return &c, nil
	}
	st := &graph.SupervisorState{City: city, WindowStartedAt: time.Now()}
	m.supervisorStates[city] = st
	c := *st
	return &c, nil
}

func (m *Memory) UpdateSupervisorState(ctx context.Context, st *graph.SupervisorState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *st
	m.supervisorStates[st.City] = &c
	return nil
}
