package embedding

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is the embedding model used when none is configured.
	DefaultGeminiModel = "text-embedding-004"

	// geminiBatchSize is the most texts sent in one EmbedContent call.
	geminiBatchSize = 100

	semanticSimilarityTask = "SEMANTIC_SIMILARITY"
)

var (
	clientOnce   sync.Once
	sharedClient *genai.Client
	clientErr    error
)

// sharedGenAIClient creates the process-wide GenAI client on first use. Later
// calls return the same client (or the same error) whatever key they pass.
func sharedGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	clientOnce.Do(func() {
		cfg := &genai.ClientConfig{}
		if apiKey != "" {
			cfg.APIKey = apiKey
			cfg.Backend = genai.BackendGeminiAPI
		}
		sharedClient, clientErr = genai.NewClient(ctx, cfg)
	})
	return sharedClient, clientErr
}

// GeminiEmbedder embeds texts with a Gemini embedding model.
type GeminiEmbedder struct {
	model      string
	apiKey     string
	dimensions int32
}

// NewGeminiEmbedder creates an embedder for model. The client is not created
// until the first Embed call. dimensions <= 0 keeps the model's native size.
func NewGeminiEmbedder(model, apiKey string, dimensions int) *GeminiEmbedder {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEmbedder{
		model:      model,
		apiKey:     apiKey,
		dimensions: int32(dimensions),
	}
}

// Embed implements Embedder.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	client, err := sharedGenAIClient(ctx, g.apiKey)
	if err != nil {
		return nil, fmt.Errorf("GeminiEmbedder.Embed: %w: %v", ErrEmbedderUnavailable, err)
	}

	embedCfg := &genai.EmbedContentConfig{TaskType: semanticSimilarityTask}
	if g.dimensions > 0 {
		embedCfg.OutputDimensionality = &g.dimensions
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchSize {
		end := start + geminiBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: text}},
			})
		}

		resp, err := client.Models.EmbedContent(ctx, g.model, contents, embedCfg)
		if err != nil {
			return nil, fmt.Errorf("GeminiEmbedder.Embed: embed content: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("GeminiEmbedder.Embed: got %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}

		for _, e := range resp.Embeddings {
			vec := make([]float64, len(e.Values))
			for i, x := range e.Values {
				vec[i] = float64(x)
			}
			// reduced-dimension outputs are not unit length
			out = append(out, normalize(vec))
		}
	}

	return out, nil
}
