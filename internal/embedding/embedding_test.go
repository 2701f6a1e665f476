package embedding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestHashEmbedder(t *testing.T) {
	h := NewHashEmbedder(128)

	vecs, err := h.Embed(context.Background(), []string{"Netflix", "NETFLIX", "Starbucks Coffee", "Netflix Subscription", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 5)

	for _, v := range vecs[:4] {
		assert.Len(t, v, 128)
		assert.InDelta(t, 1.0, floats.Norm(v, 2), 1e-9)
	}

	assert.InDelta(t, 1.0, floats.Dot(vecs[0], vecs[1]), 1e-9, "case must not matter")
	assert.Greater(t, floats.Dot(vecs[0], vecs[3]), floats.Dot(vecs[0], vecs[2]))
	assert.Equal(t, 0.0, floats.Norm(vecs[4], 2), "empty text embeds to zero")

	again, _ := h.Embed(context.Background(), []string{"Starbucks Coffee"})
	assert.Equal(t, vecs[2], again[0])
}

func TestNewHashEmbedderDefaultDimensions(t *testing.T) {
	vecs, _ := NewHashEmbedder(0).Embed(context.Background(), []string{"rent"})
	assert.Len(t, vecs[0], DefaultHashDimensions)
}

// countingEmbedder records which texts reach the wrapped embedder.
type countingEmbedder struct {
	seen []string
	err  error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.seen = append(c.seen, texts...)
	return NewHashEmbedder(16).Embed(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "embeddings.db")
	inner := &countingEmbedder{}

	cache, err := NewCachedEmbedder(path, "test/model", inner)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cache.Embed(ctx, []string{"Netflix", "Spotify"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Netflix", "Spotify"}, inner.seen)

	second, err := cache.Embed(ctx, []string{"Spotify", "Hulu", "Netflix"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Netflix", "Spotify", "Hulu"}, inner.seen, "only the miss is embedded")
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	require.NoError(t, cache.Close())

	// vectors survive reopening
	reopened, err := NewCachedEmbedder(path, "test/model", &countingEmbedder{err: errors.New("offline")})
	require.NoError(t, err)
	defer reopened.Close()

	cached, err := reopened.Embed(ctx, []string{"Hulu"})
	require.NoError(t, err)
	assert.Equal(t, second[1], cached[0])

	_, err = reopened.Embed(ctx, []string{"Disney"})
	assert.Error(t, err)
}

func TestVectorCodec(t *testing.T) {
	v := []float64{0.25, -1, 3.5}
	raw, err := encodeVector(v)
	require.NoError(t, err)

	got, err := decodeVector(raw)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	e, closeFn, err := FromConfig(ctx, config.EmbeddingConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, closeFn())

	e, closeFn, err = FromConfig(ctx, config.EmbeddingConfig{Provider: "hash", Dimensions: 32, CachePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)
	assert.NoError(t, closeFn())

	e, closeFn, err = FromConfig(ctx, config.EmbeddingConfig{Provider: "gemini", Model: "text-embedding-004", CachePath: filepath.Join(t.TempDir(), "g.db")})
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, e)
	assert.NoError(t, closeFn())

	_, _, err = FromConfig(ctx, config.EmbeddingConfig{Provider: "word2vec"})
	assert.Error(t, err)
}
