package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenChunkerEmptyInput(t *testing.T) {
	c := NewTokenChunker()

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("  \n\n  "))
}

func TestTokenChunkerShortInput(t *testing.T) {
	c := NewTokenChunker()

	chunks := c.Chunk("One sentence. Another sentence.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "One sentence. Another sentence.", chunks[0])
}

func TestTokenChunkerSplitsOnSentences(t *testing.T) {
	c := &TokenChunker{ChunkTokens: 10, OverlapTokens: 0}

	// Each sentence is 20 chars = 5 tokens, so two fit per chunk.
	sentence := "aaaa bbbb cccc dddd."
	chunks := c.Chunk(strings.Repeat(sentence+" ", 4))

	require.Len(t, chunks, 2)
	for _, chunk := range chunks {
		assert.True(t, strings.HasSuffix(chunk, "."),
			"chunks end on sentence boundaries, got %q", chunk)
	}
}

func TestTokenChunkerOverlapCarriesTrailingSentence(t *testing.T) {
	c := &TokenChunker{ChunkTokens: 10, OverlapTokens: 5}

	sentence := "aaaa bbbb cccc dddd."
	chunks := c.Chunk(strings.Repeat(sentence+" ", 3))

	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		assert.True(t, strings.HasPrefix(chunks[i], sentence),
			"chunk %d should start with the carried sentence", i)
	}
}

func TestTokenChunkerNormalizesWhitespace(t *testing.T) {
	c := NewTokenChunker()

	chunks := c.Chunk("hello    world.\n\n\nbye now.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world. bye now.", chunks[0])
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"empty", "", 0},
		{"below one token floors to one", "abc", 1},
		{"exact multiple", "abcdefgh", 2},
		{"rounds down", "abcdefghi", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, estimateTokens(tt.input))
		})
	}
}
