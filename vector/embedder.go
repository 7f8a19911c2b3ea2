// Package vector implements the Vector Index Service (C4): deterministic
// chunking, embedding, in-process ANN search, and the chunk lifecycle
// coupling to the relational store.
package vector

import (
	"context"
	"math"
)

// Embedder produces fixed-dimension vector embeddings for text. Real
// providers (sentence-transformer servers, GPU-backed model runners) are
// out of scope (spec.md §1); StubEmbedder is the documented deterministic
// stand-in for tests and local runs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Device reports the compute device the embedder claims to run on, for
	// the health-fact surface ("device", "dimension").
	Device() string
	Close() error
}

// StubEmbedder derives a deterministic, L2-normalized vector from a
// text's hash so that identical text always embeds identically and
// cosine similarity between related texts behaves sanely for tests.
type StubEmbedder struct {
	dimensions int
	device     string
}

// NewStubEmbedder returns a stub embedder of the given dimension (384 if
// dimensions <= 0, matching the spec's default sentence-embedding size).
// useGPU only affects the reported Device fact, since the stub performs
// no real computation.
func NewStubEmbedder(dimensions int, useGPU bool) *StubEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	device := "cpu"
	if useGPU {
		device = "gpu"
	}
	return &StubEmbedder{dimensions: dimensions, device: device}
}

func (e *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := hashString(text)
	vec := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		vec[i] = float32(math.Sin(float64(h*uint64(i+1)))*0.5 + 0.01)
	}
	normalizeL2(vec)
	return vec, nil
}

func (e *StubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *StubEmbedder) Dimensions() int { return e.dimensions }
func (e *StubEmbedder) Device() string  { return e.device }
func (e *StubEmbedder) Close() error    { return nil }

// hashString is a small FNV-1a variant kept local so the embedder package
// has no dependency beyond determinism.
func hashString(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func normalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v * v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}
