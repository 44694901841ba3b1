package llmprovider

import "google.golang.org/genai"

func nullable() *bool {
	b := true
	return &b
}

// The schemas below constrain every structured call the pipeline makes.
// Keeping them as package-level *genai.Schema values (rather than
// building them per call) means a malformed schema is a compile-time
// literal bug, not a runtime one.

var actorMentionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":        {Type: genai.TypeString},
		"domain":      {Type: genai.TypeString},
		"social_urls": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"name"},
}

var extractedSignalSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"variant": {
			Type: genai.TypeString,
			Enum: []string{"gathering", "aid", "need", "notice", "tension"},
		},
		"title":         {Type: genai.TypeString},
		"summary":       {Type: genai.TypeString},
		"sensitivity":   {Type: genai.TypeString, Enum: []string{"normal", "elevated", "sensitive"}},
		"location_name": {Type: genai.TypeString, Nullable: nullable()},
		"lat":           {Type: genai.TypeNumber, Nullable: nullable()},
		"lng":           {Type: genai.TypeNumber, Nullable: nullable()},
		"mentioned_actors": {
			Type:  genai.TypeArray,
			Items: actorMentionSchema,
		},
		"starts_at":         {Type: genai.TypeString, Nullable: nullable()},
		"ends_at":           {Type: genai.TypeString, Nullable: nullable()},
		"is_recurring":      {Type: genai.TypeBoolean, Nullable: nullable()},
		"action_url":        {Type: genai.TypeString, Nullable: nullable()},
		"is_ongoing":        {Type: genai.TypeBoolean, Nullable: nullable()},
		"urgency":           {Type: genai.TypeString, Nullable: nullable()},
		"what_needed":       {Type: genai.TypeString, Nullable: nullable()},
		"severity":          {Type: genai.TypeString, Nullable: nullable()},
		"category":          {Type: genai.TypeString, Nullable: nullable()},
		"effective_date":    {Type: genai.TypeString, Nullable: nullable()},
		"source_authority":  {Type: genai.TypeString, Nullable: nullable()},
		"what_would_help":   {Type: genai.TypeString, Nullable: nullable()},
	},
	Required: []string{"variant", "title", "summary", "sensitivity"},
}

var extractionResultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"signals": {Type: genai.TypeArray, Items: extractedSignalSchema},
	},
	Required: []string{"signals"},
}

var discoveryResultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"queries": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query_text": {Type: genai.TypeString},
					"reasoning":  {Type: genai.TypeString},
					"gap_type":   {Type: genai.TypeString},
				},
				Required: []string{"query_text", "reasoning", "gap_type"},
			},
		},
	},
	Required: []string{"queries"},
}

var relevanceJudgmentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"relevance": {Type: genai.TypeNumber},
		"supports":  {Type: genai.TypeBoolean},
	},
	Required: []string{"relevance", "supports"},
}

var discoveredResponseResultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"responses": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"variant":        {Type: genai.TypeString, Enum: []string{"aid", "gathering", "need"}},
					"title":          {Type: genai.TypeString},
					"summary":        {Type: genai.TypeString},
					"match_strength": {Type: genai.TypeNumber},
					"explanation":    {Type: genai.TypeString},
					"is_recurring":   {Type: genai.TypeBoolean, Nullable: nullable()},
				},
				Required: []string{"variant", "title", "summary", "match_strength", "explanation"},
			},
		},
	},
	Required: []string{"responses"},
}

var storySynthesisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"headline":        {Type: genai.TypeString},
		"lede":            {Type: genai.TypeString},
		"narrative":       {Type: genai.TypeString},
		"category":        {Type: genai.TypeString},
		"arc":             {Type: genai.TypeString},
		"action_guidance": {Type: genai.TypeString},
	},
	Required: []string{"headline", "lede", "narrative", "category", "arc", "action_guidance"},
}

var validationVerdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"valid":  {Type: genai.TypeBoolean},
		"reason": {Type: genai.TypeString},
	},
	Required: []string{"valid", "reason"},
}
