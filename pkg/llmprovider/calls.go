package llmprovider

import "context"

const extractionSystemPrompt = `You read one fetched web page for a city civic-signal
tracker and extract zero or more discrete signals. Every signal must be one of:
gathering (an event), aid (ongoing help being offered), need (something currently
needed), notice (an official/administrative notice), or tension (an unresolved
problem). Never fabricate a field: if the page does not state a value, omit it or
return null — never substitute a plausible default (a gathering with no stated
start time must have starts_at = null, never "now"). Use the sensitivity classification
"sensitive" for anything involving individual legal or enforcement matters.`

// ExtractSignals runs §4.4's extraction call against one fetched page's
// text.
func (c *Client) ExtractSignals(ctx context.Context, pageText string) (*ExtractionResult, error) {
	var out ExtractionResult
	if err := c.generateJSON(ctx, extractionSystemPrompt, pageText, extractionResultSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

const discoverySystemPrompt = `You are the curiosity engine for a city civic-signal
tracker. Given a briefing of top-performing and failing sources, unmet tensions, and
signal-type imbalances, propose up to 7 new web search queries likely to surface
signals the current source list is missing. Each query needs a one-sentence reasoning
and a gap_type tag (e.g. "geographic_gap", "type_imbalance", "tension_unmet").`

// DiscoverQueries runs §4.7's curiosity-engine call against an assembled
// briefing.
func (c *Client) DiscoverQueries(ctx context.Context, briefing string) (*DiscoveryResult, error) {
	var out DiscoveryResult
	if err := c.generateJSON(ctx, discoverySystemPrompt, briefing, discoveryResultSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

const relevanceSystemPrompt = `You judge whether a search hit's text is relevant
corroborating or contradicting evidence for a target civic signal. Return a
relevance score in [0,1] and whether the hit supports (true) or contradicts
(false) the target signal's claim. Be conservative: unrelated pages score below
0.3 regardless of superficial keyword overlap.`

// JudgeRelevance runs §4.8's per-hit relevance call.
func (c *Client) JudgeRelevance(ctx context.Context, targetSummary, hitText string) (*RelevanceJudgment, error) {
	prompt := "Target signal:\n" + targetSummary + "\n\nCandidate evidence:\n" + hitText
	var out RelevanceJudgment
	if err := c.generateJSON(ctx, relevanceSystemPrompt, prompt, relevanceJudgmentSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

const responseFinderSystemPrompt = `You read fetched search-result text looking for
concrete responses to an unmet tension: offers of aid, gatherings organized in
response, or needs that echo the same gap. Only return clear matches, each with a
match_strength in [0,1] and a short explanation quoted from the source text when
possible. For gatherings, set is_recurring from what the text actually states —
never guess.`

// FindResponses runs §4.9's narrowed extraction call for the
// response/gathering/need finder.
func (c *Client) FindResponses(ctx context.Context, tensionWhatWouldHelp, hitText string) (*DiscoveredResponseResult, error) {
	prompt := "Tension needs: " + tensionWhatWouldHelp + "\n\nCandidate text:\n" + hitText
	var out DiscoveredResponseResult
	if err := c.generateJSON(ctx, responseFinderSystemPrompt, prompt, discoveredResponseResultSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

const synthesisSystemPrompt = `You write a short, neutral news-style synthesis of a
cluster of related civic signals anchored on an unresolved tension and its
responses. headline must be <= 80 characters. lede is one sentence. narrative is
2-4 sentences. category is a short topic label. arc is one of "emerging",
"developing", "resolving", "stalled". action_guidance is one practical sentence
for a resident reading this story.`

// SynthesizeStory runs §4.10.D's synthesis call.
func (c *Client) SynthesizeStory(ctx context.Context, clusterSummary string) (*StorySynthesis, error) {
	var out StorySynthesis
	if err := c.generateJSON(ctx, synthesisSystemPrompt, clusterSummary, storySynthesisSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

const validationSystemPrompt = `You check whether a piece of evidence text actually
supports the signal it is attached to, or whether it looks unrelated/contradictory
(an echo-chamber or bad-corroboration candidate). Return valid=false with a short
reason when the evidence does not genuinely support the signal's claim.`

// ValidateEvidence runs §4.12's LLM-assisted validation call (used by
// the supervisor's contradicts-evidence / echo-chamber checks).
func (c *Client) ValidateEvidence(ctx context.Context, signalSummary, evidenceExcerpt string) (*ValidationVerdict, error) {
	prompt := "Signal:\n" + signalSummary + "\n\nEvidence:\n" + evidenceExcerpt
	var out ValidationVerdict
	if err := c.generateJSON(ctx, validationSystemPrompt, prompt, validationVerdictSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
