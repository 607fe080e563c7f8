package chunker

import (
	"path/filepath"

	"github.com/codegrove/chunkdex/internal/chunk"
)

// WholeFileChunker is the terminal strategy: it accepts any file and emits
// its entire contents as a single chunk, split down to size. It never
// fails, which guarantees every file gets at least one analysis result.
type WholeFileChunker struct{}

// NewWholeFileChunker creates the catch-all chunker.
func NewWholeFileChunker() *WholeFileChunker {
	return &WholeFileChunker{}
}

func (w *WholeFileChunker) Name() string { return "whole_file" }

// CanChunk always accepts.
func (w *WholeFileChunker) CanChunk(_, _ string) bool { return true }

// Chunk returns the file as one whole_file chunk named after the file's
// base name, split if it exceeds the default size bound.
func (w *WholeFileChunker) Chunk(source, path string) ([]*chunk.Chunk, error) {
	c := chunk.New(chunk.CategoryWholeFile, filepath.Base(path), chunk.LineAt(1), source)
	return c.Split(chunk.DefaultMaxChunkSize, ""), nil
}
