package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
	dim  int
	err  error
	out  [][]float32
	hits int
}

func (s *stubProvider) Name() string   { return s.name }
func (s *stubProvider) Dimension() int { return s.dim }
func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.hits++
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

func TestChain_Embed(t *testing.T) {
	ctx := context.Background()

	t.Run("Should use the first provider when it succeeds", func(t *testing.T) {
		primary := &stubProvider{name: "primary", dim: 4, out: [][]float32{{1, 2, 3, 4}}}
		secondary := &stubProvider{name: "secondary", dim: 4, out: [][]float32{{9, 9, 9, 9}}}
		chain := NewChain(primary, secondary)

		vecs, err := chain.Embed(ctx, []string{"hello"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 2, 3, 4}}, vecs)
		assert.Equal(t, 0, secondary.hits)
	})

	t.Run("Should fall through to the next provider on failure", func(t *testing.T) {
		primary := &stubProvider{name: "primary", dim: 4, err: errors.New("down")}
		secondary := &stubProvider{name: "secondary", dim: 4, out: [][]float32{{9, 9, 9, 9}}}
		chain := NewChain(primary, secondary)

		vecs, err := chain.Embed(ctx, []string{"hello"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{9, 9, 9, 9}}, vecs)
	})

	t.Run("Should remember the last-successful provider and try it first next call", func(t *testing.T) {
		primary := &stubProvider{name: "primary", dim: 4, err: errors.New("down")}
		secondary := &stubProvider{name: "secondary", dim: 4, out: [][]float32{{9, 9, 9, 9}}}
		chain := NewChain(primary, secondary)

		_, err := chain.Embed(ctx, []string{"hello"})
		require.NoError(t, err)

		primary.err = nil
		primary.out = [][]float32{{1, 1, 1, 1}}
		vecs, err := chain.Embed(ctx, []string{"world"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{9, 9, 9, 9}}, vecs)
	})

	t.Run("Should return AllProvidersFailedError when every provider fails", func(t *testing.T) {
		primary := &stubProvider{name: "primary", dim: 4, err: errors.New("down")}
		chain := NewChain(primary)

		_, err := chain.Embed(ctx, []string{"hello"})
		require.Error(t, err)
		var allFailed *AllProvidersFailedError
		assert.ErrorAs(t, err, &allFailed)
	})
}

func TestLocalProvider_Embed(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(16)

	t.Run("Should be deterministic for the same text", func(t *testing.T) {
		a, err := p.Embed(ctx, []string{"Gyeongbokgung Palace"})
		require.NoError(t, err)
		b, err := p.Embed(ctx, []string{"Gyeongbokgung Palace"})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Should produce the configured dimension", func(t *testing.T) {
		vecs, err := p.Embed(ctx, []string{"any text"})
		require.NoError(t, err)
		assert.Len(t, vecs[0], 16)
	})

	t.Run("Should differ for different text", func(t *testing.T) {
		a, _ := p.Embed(ctx, []string{"Seoul"})
		b, _ := p.Embed(ctx, []string{"Busan"})
		assert.NotEqual(t, a, b)
	})
}
