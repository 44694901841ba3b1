// Package llmprovider wraps the Gemini API for every structured call the
// pipeline issues: extraction, discovery, investigation relevance,
// synthesis, and validation (SPEC_FULL.md DOMAIN STACK). The teacher's own
// LLM bridge (pkg/llm) talks to a generated protobuf service this repo
// cannot reproduce without running codegen; google.golang.org/genai is a
// real SDK already present in the retrieval pack (theRebelliousNerd-codenerd's
// internal/embedding/genai.go) and is used directly instead.
package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// Config configures the Client.
type Config struct {
	APIKey string
	// Model is the structured-output model used for extraction, discovery,
	// investigation judging, synthesis, and validation calls.
	Model string
	// Timeout bounds a single GenerateContent call.
	Timeout time.Duration
}

// Client issues structured (JSON-schema-constrained) calls against
// Gemini. It has no notion of conversation history — every call is a
// single-shot prompt plus response schema, matching the pipeline's
// call-and-parse usage.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewClient constructs a Client. Mirrors the teacher's own LLM client
// constructor shape (validate config, default the model, wrap
// connection errors) even though the underlying transport has changed.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmprovider: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("llmprovider: create genai client: %w", err)
	}

	slog.Debug("llmprovider client configured", "model", model, "timeout", timeout)

	return &Client{client: client, model: model, timeout: timeout}, nil
}

// Close is a no-op; the genai client holds no resources that need
// explicit release (mirrors GenAIEngine.Close in the pack).
func (c *Client) Close() error { return nil }

// generateJSON issues a single structured-output call: systemPrompt sets
// the call's role instructions, userPrompt carries the call-specific
// payload (page text, briefing, claim under test, ...), schema
// constrains the shape of the response, and out receives the decoded
// JSON. Callers never see raw genai types.
func (c *Client) generateJSON(ctx context.Context, systemPrompt, userPrompt string, schema *genai.Schema, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return fmt.Errorf("llmprovider: generate content: %w", err)
	}

	text := result.Text()
	if text == "" {
		return fmt.Errorf("llmprovider: empty response")
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("llmprovider: decode response: %w", err)
	}
	return nil
}
