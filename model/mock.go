package model

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// MockEmbedder derives a deterministic unit vector from the text itself.
// Identical texts always embed identically, so retrieval stays meaningful
// enough for tests and offline runs without any model behind it.
type MockEmbedder struct {
	VectorCodec

	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, e.dimension)
	var norm float64
	for i := range vec {
		// xorshift64 over the text hash
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(int64(state))/float64(math.MaxInt64) - 0.5
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (e *MockEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}
