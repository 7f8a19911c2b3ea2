package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_ContiguousIndices(t *testing.T) {
	c := NewChunker(500, 50)
	sections := map[string]string{
		"abstract":     "a sample abstract body long enough to matter for this test",
		"introduction": "an introduction section with its own independent text",
	}
	chunks := c.Chunk(sections)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
	}
}

func TestChunker_DoesNotCrossSectionBoundary(t *testing.T) {
	c := NewChunker(10, 2)
	sections := map[string]string{
		"abstract":   "0123456789ABCDEFGHIJ",
		"references": "zzzzzzzzzz",
	}
	chunks := c.Chunk(sections)
	for _, ch := range chunks {
		assert.Contains(t, []string{"abstract", "references"}, ch.Section)
	}
	// every chunk's text must come from exactly one section's source string
	for _, ch := range chunks {
		assert.NotContains(t, ch.Text, "z")
		if ch.Section == "references" {
			assert.NotContains(t, ch.Text, "0")
		}
	}
}

func TestChunker_ShortResidualEmittedAsFinalChunk(t *testing.T) {
	c := NewChunker(10, 3)
	sections := map[string]string{"abstract": "0123456789AB"}
	chunks := c.Chunk(sections)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.LessOrEqual(t, len(last.Text), 10)
}

func TestChunker_EmptySectionsProduceNoChunks(t *testing.T) {
	c := NewChunker(500, 50)
	assert.Empty(t, c.Chunk(map[string]string{}))
	assert.Empty(t, c.Chunk(map[string]string{"abstract": ""}))
}

func TestChunker_DefaultsAppliedForInvalidConfig(t *testing.T) {
	c := NewChunker(0, 0)
	assert.Equal(t, 500, c.size)
	assert.Equal(t, 50, c.overlap)

	c2 := NewChunker(100, 100)
	assert.Equal(t, 50, c2.overlap)
}
