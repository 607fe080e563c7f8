package chunker

import (
	"strings"

	"github.com/codegrove/chunkdex/internal/chunk"
)

// noHeadingName names the section covering content before the first
// heading.
const noHeadingName = "(no heading)"

// MarkdownChunker splits markdown documents into one chunk per heading
// section. A section runs from its heading (inclusive) to just before the
// next heading.
type MarkdownChunker struct{}

// NewMarkdownChunker creates a markdown chunker.
func NewMarkdownChunker() *MarkdownChunker {
	return &MarkdownChunker{}
}

func (m *MarkdownChunker) Name() string { return "markdown" }

// CanChunk accepts .md files.
func (m *MarkdownChunker) CanChunk(_, path string) bool {
	return strings.HasSuffix(path, ".md")
}

// Chunk splits on heading markers. The section name is the heading text
// with the markup stripped, or "(no heading)" for leading content.
func (m *MarkdownChunker) Chunk(source, _ string) ([]*chunk.Chunk, error) {
	lines := strings.Split(source, "\n")
	// A trailing newline is a line terminator, not an extra empty line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var (
		chunks       []*chunk.Chunk
		section      []string
		heading      string
		sectionStart = 1
	)
	emit := func() {
		name := noHeadingName
		if heading != "" {
			name = strings.TrimSpace(strings.ReplaceAll(heading, "#", ""))
		}
		chunks = append(chunks, chunk.New(
			chunk.CategoryMarkdownSection, name,
			chunk.LineAt(sectionStart), strings.Join(section, "\n")))
	}

	for i, line := range lines {
		if strings.HasPrefix(line, "#") {
			if len(section) > 0 {
				emit()
			}
			heading = line
			section = []string{line}
			sectionStart = i + 1
		} else {
			section = append(section, line)
		}
	}
	if len(section) > 0 {
		emit()
	}
	return chunks, nil
}
