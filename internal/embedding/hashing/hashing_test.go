package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbedIsDeterministicAndNormalized(t *testing.T) {
	e, err := NewEmbedder(64)
	require.NoError(t, err)

	a, err := e.Embed(context.Background(), []string{"Maize needs nitrogen fertilizer", "maize NEEDS nitrogen fertilizer"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Len(t, a[0], 64)
	assert.InDelta(t, 1.0, norm(a[0]), 1e-5)
	assert.Equal(t, a[0], a[1])
}

func TestEmbedStopwordsOnlyYieldsZeroVector(t *testing.T) {
	e, err := NewEmbedder(16)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), []string{"the and of"})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v[0])
}

func TestEmbedDifferentTextsDiffer(t *testing.T) {
	e, err := NewEmbedder(256)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), []string{"irrigation schedule for tomatoes", "poultry vaccination plan"})
	require.NoError(t, err)
	assert.NotEqual(t, v[0], v[1])
}

func TestNewEmbedderRejectsBadDimension(t *testing.T) {
	_, err := NewEmbedder(0)
	assert.Error(t, err)
}

func TestEmbedHonorsCancelledContext(t *testing.T) {
	e, err := NewEmbedder(8)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Embed(ctx, []string{"soil"})
	assert.ErrorIs(t, err, context.Canceled)
}
