package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubEmbedder_Deterministic(t *testing.T) {
	e := NewStubEmbedder(16, false)
	ctx := context.Background()

	a, err := e.Embed(ctx, "same text")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "same text")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestStubEmbedder_DefaultsTo384Dimensions(t *testing.T) {
	e := NewStubEmbedder(0, false)
	assert.Equal(t, 384, e.Dimensions())
}

func TestStubEmbedder_DeviceReflectsGPUFlag(t *testing.T) {
	assert.Equal(t, "cpu", NewStubEmbedder(8, false).Device())
	assert.Equal(t, "gpu", NewStubEmbedder(8, true).Device())
}

func TestStubEmbedder_EmbedBatchMatchesEmbed(t *testing.T) {
	e := NewStubEmbedder(8, false)
	ctx := context.Background()
	batch, err := e.EmbedBatch(ctx, []string{"x", "y"})
	require.NoError(t, err)
	single, err := e.Embed(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, single, batch[0])
}
