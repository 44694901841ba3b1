package llmprovider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// embeddingDimensions matches the signals.embedding vector(1024) column
// (pkg/graph/store/migrations). Gemini's embedding models default to
// 3072 dimensions (see GenAIEngine.Dimensions in the pack); this repo
// requests the smaller Matryoshka-truncated size explicitly so stored
// vectors fit the HNSW index without a projection step.
const embeddingDimensions = 1024

// maxEmbedBatch mirrors the pack's GenAI batching cap: the API errors
// past 100 requests in one call.
const maxEmbedBatch = 100

// Embedder wraps the same genai.Client for embedding calls, kept
// separate from Client so the dedup/similarity layers can depend on a
// narrower interface than the full structured-call surface.
type Embedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder builds an Embedder sharing the Client's connection.
func NewEmbedder(c *Client, model string) *Embedder {
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &Embedder{client: c.client, model: model}
}

// Embed produces a single embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("llmprovider: no embedding returned")
	}
	return vecs[0], nil
}

// EmbedBatch embeds multiple texts, chunking at the API's batch limit.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= maxEmbedBatch {
		return e.embedChunk(ctx, texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("llmprovider: embed batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (e *Embedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dims := int32(embeddingDimensions)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("llmprovider: embed content: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("llmprovider: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// Dimensions reports the configured embedding width.
func (e *Embedder) Dimensions() int { return embeddingDimensions }
