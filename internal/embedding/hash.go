package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimensions is used when a HashEmbedder is built with dim <= 0.
const DefaultHashDimensions = 256

// HashEmbedder is a deterministic, offline embedder. It hashes character
// trigrams and whole words of the lower-cased text into a fixed number of
// buckets. It captures spelling overlap only ("Netflix" vs "NETFLIX"), not
// meaning.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder with dim buckets.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return &HashEmbedder{dim: dim}
}

// Embed implements Embedder. It never fails.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float64 {
	v := make([]float64, h.dim)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		v[h.bucket("w:"+w)] += 1
	}

	joined := []rune(strings.Join(words, ""))
	for i := 0; i+3 <= len(joined); i++ {
		v[h.bucket("t:"+string(joined[i:i+3]))] += 1
	}
	if len(joined) > 0 && len(joined) < 3 {
		v[h.bucket("t:"+string(joined))] += 1
	}

	return normalize(v)
}

func (h *HashEmbedder) bucket(feature string) int {
	f := fnv.New32a()
	f.Write([]byte(feature))
	return int(f.Sum32() % uint32(h.dim))
}
