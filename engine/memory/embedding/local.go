package embedding

import (
	"context"
	"crypto/sha256"
	"math"
)

// LocalProvider is the last-resort fallback when every remote provider is
// unavailable: original_source falls back to a HuggingFace
// sentence-transformers model loaded in-process, which has no Go-native
// equivalent in the teacher's or pack's dependency graph (no embedded-model
// runtime is imported anywhere in the retrieved corpus). Rather than
// fabricate a dependency, LocalProvider produces a deterministic,
// hash-derived unit vector: same text always maps to the same vector (so
// repeated content hits the same point in space), giving the rest of the
// pipeline — storage, filtering, ranking — a working fallback to exercise
// without a network call. It is explicitly not a semantic embedding.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider constructs a LocalProvider with a frozen dimension.
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &LocalProvider{dimension: dimension}
}

func (p *LocalProvider) Name() string   { return "local" }
func (p *LocalProvider) Dimension() int { return p.dimension }

func (p *LocalProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = deterministicVector(text, p.dimension)
	}
	return vecs, nil
}

func deterministicVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(text)
	block := sha256.Sum256(seed)
	for i := 0; i < dim; i++ {
		if i > 0 && i%len(block) == 0 {
			block = sha256.Sum256(block[:])
		}
		// Map each byte to [-1, 1).
		vec[i] = float32(block[i%len(block)])/128.0 - 1.0
	}
	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
