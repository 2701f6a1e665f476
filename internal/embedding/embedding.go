// Package embedding provides text embedders for merchant-name
// canonicalization: a Gemini-backed model, a deterministic lexical hash
// embedder, and a bolt-backed cache that wraps either.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"gonum.org/v1/gonum/floats"
)

// ErrEmbedderUnavailable is returned when no embedding backend can be reached.
var ErrEmbedderUnavailable = errors.New("embedder unavailable")

// Embedder maps texts to unit-normalized vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// FromConfig builds the embedder selected by cfg.Provider. The returned close
// function releases the cache, if any. A nil Embedder with a nil error means
// canonicalization is switched off ("none").
func FromConfig(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, func() error, error) {
	log := logger.FromContext(ctx)
	noop := func() error { return nil }

	var base Embedder
	switch cfg.Provider {
	case "none":
		return nil, noop, nil
	case "hash":
		base = NewHashEmbedder(cfg.Dimensions)
	case "gemini":
		base = NewGeminiEmbedder(cfg.Model, os.Getenv(cfg.APIKeyEnv), cfg.Dimensions)
	default:
		return nil, noop, fmt.Errorf("FromConfig: unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CachePath == "" || cfg.Provider == "hash" {
		return base, noop, nil
	}

	cached, err := NewCachedEmbedder(cfg.CachePath, cfg.Provider+"/"+cfg.Model, base)
	if err != nil {
		// the cache is an optimisation; run uncached rather than fail
		log.Warn().Err(err).Str("cache_path", cfg.CachePath).Msg("Embedding cache disabled")
		return base, noop, nil
	}
	return cached, cached.Close, nil
}

// normalize scales v to unit L2 norm in place and returns it.
func normalize(v []float64) []float64 {
	if n := floats.Norm(v, 2); n > 0 {
		floats.Scale(1/n, v)
	}
	return v
}
