// Package canonicalize collapses near-duplicate merchant display names
// ("NETFLIX.COM", "Netflix Inc") into one canonical label per merchant by
// clustering their text embeddings.
//
// Clustering is a single greedy pass over the unique names in
// first-occurrence order, so reordering the input can change the result.
package canonicalize

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultThreshold is the minimum cosine similarity for joining a cluster.
	DefaultThreshold = 0.85

	// UnknownName labels transactions with an empty display name.
	UnknownName = "Unknown"
)

// Embedder maps texts to fixed-dimension vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// MergeRule controls how a cluster centroid absorbs a new member.
type MergeRule string

const (
	// MergeRunningSum sets the centroid to normalize(centroid + v). It weighs
	// later members more than a true mean would and is the default.
	MergeRunningSum MergeRule = "running_sum"

	// MergeMean sets the centroid to the normalized sum of all members.
	MergeMean MergeRule = "mean"
)

// Config tunes clustering.
type Config struct {
	Threshold float64
	Merge     MergeRule
}

// DefaultConfig returns the threshold 0.85 running-sum configuration.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Merge: MergeRunningSum}
}

// Canonicalizer builds CanonicalNameMaps from transactions.
type Canonicalizer struct {
	embedder Embedder
	cfg      Config
}

// New creates a Canonicalizer. A nil embedder yields identity maps.
func New(embedder Embedder, cfg Config) *Canonicalizer {
	if cfg.Merge == "" {
		cfg.Merge = MergeRunningSum
	}
	return &Canonicalizer{embedder: embedder, cfg: cfg}
}

type cluster struct {
	label    string
	centroid []float64
	sum      []float64 // only maintained for MergeMean
}

// Build maps every distinct raw display name in txs to a canonical label.
// If embeddings cannot be obtained the map is the identity.
func (c *Canonicalizer) Build(ctx context.Context, txs []domain.Transaction) domain.CanonicalNameMap {
	log := logger.FromContext(ctx)

	names := UniqueNames(txs)
	if len(names) == 0 {
		return domain.CanonicalNameMap{}
	}
	if c.embedder == nil {
		return Identity(names)
	}

	vecs, err := c.embed(ctx, names)
	if err != nil {
		log.Warn().Err(err).Int("unique_names", len(names)).Msg("Embedding unavailable, using verbatim merchant names")
		return Identity(names)
	}

	result, clusters := c.cluster(names, vecs)

	log.Debug().
		Int("unique_names", len(names)).
		Int("clusters", clusters).
		Float64("threshold", c.cfg.Threshold).
		Str("merge", string(c.cfg.Merge)).
		Msg("Canonicalized merchant names")

	return result
}

func (c *Canonicalizer) embed(ctx context.Context, names []string) ([][]float64, error) {
	vecs, err := c.embedder.Embed(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("embed %d names: %w", len(names), err)
	}
	if len(vecs) != len(names) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d names", len(vecs), len(names))
	}

	dim := len(vecs[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedder returned empty vectors")
	}
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		out[i] = Normalize(v)
	}
	return out, nil
}

func (c *Canonicalizer) cluster(names []string, vecs [][]float64) (domain.CanonicalNameMap, int) {
	result := make(domain.CanonicalNameMap, len(names))
	var clusters []cluster

	for i, name := range names {
		vec := vecs[i]

		best, bestSim := -1, 0.0
		for j := range clusters {
			sim := floats.Dot(clusters[j].centroid, vec)
			if best < 0 || sim > bestSim {
				best, bestSim = j, sim
			}
		}

		if best < 0 || bestSim < c.cfg.Threshold {
			clusters = append(clusters, c.open(name, vec))
			result[name] = name
			continue
		}

		c.merge(&clusters[best], vec)
		result[name] = clusters[best].label
	}

	return result, len(clusters)
}

func (c *Canonicalizer) open(label string, vec []float64) cluster {
	cl := cluster{label: label, centroid: append([]float64(nil), vec...)}
	if c.cfg.Merge == MergeMean {
		cl.sum = append([]float64(nil), vec...)
	}
	return cl
}

func (c *Canonicalizer) merge(cl *cluster, vec []float64) {
	switch c.cfg.Merge {
	case MergeMean:
		floats.Add(cl.sum, vec)
		cl.centroid = Normalize(cl.sum)
	default:
		next := make([]float64, len(vec))
		floats.AddTo(next, cl.centroid, vec)
		cl.centroid = Normalize(next)
	}
}

// Apply returns a copy of txs with each Name replaced by its canonical label.
func Apply(txs []domain.Transaction, m domain.CanonicalNameMap) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, t := range txs {
		t.Name = m.Lookup(RawName(t))
		out[i] = t
	}
	return out
}

// RawName is the trimmed display name of t, or UnknownName when empty.
func RawName(t domain.Transaction) string {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return UnknownName
	}
	return name
}

// UniqueNames returns the distinct raw names of txs in first-occurrence order.
func UniqueNames(txs []domain.Transaction) []string {
	seen := make(map[string]bool, len(txs))
	var names []string
	for _, t := range txs {
		name := RawName(t)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Identity maps every name to itself.
func Identity(names []string) domain.CanonicalNameMap {
	m := make(domain.CanonicalNameMap, len(names))
	for _, name := range names {
		m[name] = name
	}
	return m
}

// Normalize returns v scaled to unit L2 norm. A zero vector is returned
// unchanged.
func Normalize(v []float64) []float64 {
	out := append([]float64(nil), v...)
	n := floats.Norm(out, 2)
	if n == 0 {
		return out
	}
	floats.Scale(1/n, out)
	return out
}
