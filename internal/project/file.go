package project

import (
	"path/filepath"

	"github.com/codegrove/chunkdex/internal/chunk"
	"github.com/codegrove/chunkdex/internal/chunker"
)

// File is one analyzed file: its contents as read at analysis time plus the
// chunks extracted from them.
type File struct {
	Chunks   []*chunk.Chunk
	AbsPath  string
	Contents string
	Ext      string
}

// BuildFile analyzes source through the strategy chain. It cannot fail: the
// chain's terminal strategy accepts everything, and even a fully failed
// chain just yields a File with no chunks.
func BuildFile(source, absPath string) *File {
	return &File{
		Chunks:   chunker.Extract(chunker.DefaultStrategies(), source, absPath),
		AbsPath:  absPath,
		Contents: source,
		Ext:      filepath.Ext(absPath),
	}
}

// ChunksOfCategory returns the file's chunks with the given category, in
// extraction order.
func (f *File) ChunksOfCategory(cat chunk.Category) []*chunk.Chunk {
	var out []*chunk.Chunk
	for _, c := range f.Chunks {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}

// MatchingChunks returns the file's chunks whose name or content matches
// the filter. A nil filter matches every chunk.
func (f *File) MatchingChunks(filter []string, on chunk.FilterTarget) []*chunk.Chunk {
	var out []*chunk.Chunk
	for _, c := range f.Chunks {
		if c.MatchesFilter(filter, on) {
			out = append(out, c)
		}
	}
	return out
}
