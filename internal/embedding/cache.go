package embedding

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

// CachedEmbedder stores vectors in a bolt database keyed by text, so that
// repeated runs only embed names they have not seen before.
type CachedEmbedder struct {
	db     *bolt.DB
	bucket []byte
	inner  Embedder
}

// NewCachedEmbedder opens (or creates) the cache at path. namespace separates
// vectors of different models inside one file.
func NewCachedEmbedder(path, namespace string, inner Embedder) (*CachedEmbedder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("NewCachedEmbedder: mkdir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("NewCachedEmbedder: open %s: %w", path, err)
	}

	bucket := []byte("embeddings:" + namespace)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewCachedEmbedder: create bucket: %w", err)
	}

	return &CachedEmbedder{db: db, bucket: bucket, inner: inner}, nil
}

// Close releases the database file.
func (c *CachedEmbedder) Close() error {
	return c.db.Close()
}

// Embed implements Embedder, calling the wrapped embedder only for misses.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	var missing []string
	var missingIdx []int
	if err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		for i, text := range texts {
			raw := b.Get([]byte(text))
			if raw == nil {
				missing = append(missing, text)
				missingIdx = append(missingIdx, i)
				continue
			}
			vec, err := decodeVector(raw)
			if err != nil {
				return err
			}
			out[i] = vec
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("CachedEmbedder.Embed: read cache: %w", err)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("CachedEmbedder.Embed: got %d vectors for %d texts", len(fresh), len(missing))
	}

	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		for i, text := range missing {
			raw, err := encodeVector(fresh[i])
			if err != nil {
				return err
			}
			if err := b.Put([]byte(text), raw); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("CachedEmbedder.Embed: write cache: %w", err)
	}

	for i, idx := range missingIdx {
		out[idx] = fresh[i]
	}
	return out, nil
}

func encodeVector(v []float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("corrupt cache entry of %d bytes", len(raw))
	}
	v := make([]float64, len(raw)/8)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}
