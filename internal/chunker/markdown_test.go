package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/chunkdex/internal/chunk"
)

func TestMarkdownChunker_TwoSections(t *testing.T) {
	source := "# A\nfoo\n## B\nbar\n"

	chunks, err := NewMarkdownChunker().Chunk(source, "doc.md")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "A", chunks[0].Name)
	assert.Equal(t, chunk.CategoryMarkdownSection, chunks[0].Category)
	assert.Equal(t, "# A\nfoo", chunks[0].Content)
	require.NotNil(t, chunks[0].Line)
	assert.Equal(t, 1, *chunks[0].Line)

	assert.Equal(t, "B", chunks[1].Name)
	assert.Equal(t, "## B\nbar", chunks[1].Content)
	require.NotNil(t, chunks[1].Line)
	assert.Equal(t, 3, *chunks[1].Line)
}

func TestMarkdownChunker_LeadingContentWithoutHeading(t *testing.T) {
	source := "intro text\nmore intro\n# First\nbody\n"

	chunks, err := NewMarkdownChunker().Chunk(source, "doc.md")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "(no heading)", chunks[0].Name)
	assert.Equal(t, "intro text\nmore intro", chunks[0].Content)
	assert.Equal(t, 1, *chunks[0].Line)

	assert.Equal(t, "First", chunks[1].Name)
	assert.Equal(t, 3, *chunks[1].Line)
}

func TestMarkdownChunker_HeadingNameStripping(t *testing.T) {
	chunks, err := NewMarkdownChunker().Chunk("###   Deep  Dive   \ntext\n", "doc.md")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Deep  Dive", chunks[0].Name)
}

func TestMarkdownChunker_EmptySource(t *testing.T) {
	chunks, err := NewMarkdownChunker().Chunk("", "doc.md")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMarkdownChunker_CanChunk(t *testing.T) {
	m := NewMarkdownChunker()
	assert.True(t, m.CanChunk("", "README.md"))
	assert.False(t, m.CanChunk("", "README.rst"))
}
