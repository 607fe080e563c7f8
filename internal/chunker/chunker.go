// Package chunker decomposes a single file's text into semantic chunks.
//
// Decomposition is strategy based: each Strategy knows how to break down one
// family of file formats, and a fixed-priority chain tries them in order,
// falling back to the next eligible strategy when one fails. The final
// strategy accepts any input and never fails, so extraction as a whole never
// surfaces an error.
package chunker

import (
	"log/slog"

	"github.com/codegrove/chunkdex/internal/chunk"
)

// Strategy decomposes one family of file formats into chunks.
type Strategy interface {
	// CanChunk reports whether this strategy can likely handle the file.
	// It must be a cheap check (typically on the extension) and must not
	// assume the file exists on disk.
	CanChunk(source, path string) bool

	// Chunk extracts chunks from the source. It may fail; callers handle
	// failure by advancing to the next eligible strategy.
	Chunk(source, path string) ([]*chunk.Chunk, error)

	// Name identifies the strategy in logs.
	Name() string
}

// DefaultStrategies returns the fixed-priority strategy chain. The
// whole-file chunker has to be last: it is the fallback that accepts
// anything.
func DefaultStrategies() []Strategy {
	return []Strategy{
		NewGoChunker(),
		NewTreeSitterChunker(),
		NewMarkdownChunker(),
		NewVueChunker(),
		NewWholeFileChunker(),
	}
}

// Extract runs the strategy chain over the source. Strategies whose
// CanChunk is false are skipped; the first accepting strategy's extraction
// is attempted, and on error the chain advances to the next eligible
// strategy (a failed strategy is never retried). The first strategy that
// returns without error wins, even with an empty result. If every eligible
// strategy fails the result is simply no chunks; extraction itself never
// fails.
func Extract(strategies []Strategy, source, path string) []*chunk.Chunk {
	for _, s := range strategies {
		if !s.CanChunk(source, path) {
			continue
		}
		chunks, err := s.Chunk(source, path)
		if err != nil {
			slog.Warn("chunker strategy failed, trying next",
				slog.String("strategy", s.Name()),
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		return chunks
	}
	return nil
}
