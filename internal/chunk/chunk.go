package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Category classifies what kind of source construct a chunk holds.
type Category string

const (
	CategoryCallable        Category = "callable"
	CategoryMarkdownSection Category = "markdown_section"
	CategoryImports         Category = "imports"
	CategoryModuleLevel     Category = "module_level"
	CategoryWholeFile       Category = "whole_file"
	CategoryOther           Category = "other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCallable, CategoryMarkdownSection, CategoryImports,
		CategoryModuleLevel, CategoryWholeFile, CategoryOther:
		return true
	}
	return false
}

const (
	// DefaultMaxChunkSize is the maximum content size, in characters,
	// before a chunk gets split into parts.
	DefaultMaxChunkSize = 10000

	// DefaultSplitPrefix is prepended to each part of a split chunk so a
	// reader knows it is looking at a fragment.
	DefaultSplitPrefix = "[This is a subsection of the chunk. Other parts contain the rest of the chunk]\n\n"

	// lineSafetyMargin keeps the long-line pre-pass slices comfortably
	// under the per-part budget.
	lineSafetyMargin = 50
)

// Chunk is a named, categorized slice of a file's text. Chunks are
// immutable once constructed; mutating one after handing it out breaks the
// derived-ID contract.
type Chunk struct {
	Category Category
	Name     string
	Line     *int // 1-based line where the chunk starts; nil when unknown
	Content  string
}

// New constructs a chunk. line may be nil.
func New(category Category, name string, line *int, content string) *Chunk {
	return &Chunk{Category: category, Name: name, Line: line, Content: content}
}

// LineAt is a convenience for building the optional line pointer.
func LineAt(n int) *int { return &n }

// ID derives a stable identifier from (content, name, line, category). The
// same field values always produce the same ID, so a recreated chunk keeps
// its identity; collisions are possible but overwhelmingly unlikely. The
// name is embedded in the ID to make tool request logs readable.
func (c *Chunk) ID() string {
	line := "none"
	if c.Line != nil {
		line = strconv.Itoa(*c.Line)
	}
	sum := sha256.Sum256([]byte(c.Content + c.Name + line + string(c.Category)))
	return c.Name + "_" + hex.EncodeToString(sum[:])[:10]
}

// FilterTarget selects which chunk field(s) a filter is matched against.
type FilterTarget string

const (
	FilterName          FilterTarget = "name"
	FilterContent       FilterTarget = "content"
	FilterNameOrContent FilterTarget = "name_or_content"
)

// MatchesFilter reports whether the chunk matches the given filter on the
// given target. A nil filter matches every chunk; otherwise the target data
// must contain at least one of the filter strings (case sensitive).
func (c *Chunk) MatchesFilter(filter []string, on FilterTarget) bool {
	var data string
	switch on {
	case FilterName:
		data = c.Name
	case FilterContent:
		data = c.Content
	case FilterNameOrContent:
		data = c.Content + c.Name
	}
	return MatchesFilter(filter, data)
}

// MatchesFilter reports whether data contains any of the filter strings.
// A nil filter matches everything, including empty data.
func MatchesFilter(filter []string, data string) bool {
	if filter == nil {
		return true
	}
	for _, f := range filter {
		if strings.Contains(data, f) {
			return true
		}
	}
	return false
}

// Split breaks the chunk into parts of at most maxSize characters each,
// splitting at line boundaries except for single lines that are themselves
// over budget. If the content already fits, the result is the receiver
// itself in a one-element slice; callers can compare pointers to detect
// that no split occurred.
//
// Each part's content is prefix + its share of the original content, named
// {Name}_part{N} with N starting at 1. Parts keep the original category and
// carry a nil line, since line provenance is lost once content is split.
// Stripping the prefix from every part and concatenating in order
// reproduces the original content exactly.
func (c *Chunk) Split(maxSize int, prefix string) []*Chunk {
	if len(c.Content) <= maxSize {
		return []*Chunk{c}
	}
	maxSize -= len(prefix)

	// Pre-pass: slice any line longer than the per-line budget into
	// fixed-length runs so the greedy pass below never sees a line it
	// cannot fit into an empty part.
	maxLineSize := maxSize - lineSafetyMargin
	if maxLineSize < 1 {
		maxLineSize = 1
	}
	var lines []string
	for _, line := range splitLinesKeepEnds(c.Content) {
		if len(line) > maxLineSize {
			for start := 0; start < len(line); {
				end := start + maxLineSize
				if end >= len(line) {
					lines = append(lines, line[start:])
					break
				}
				// Back off to a rune boundary so multibyte
				// characters are never cut in half. A budget
				// smaller than one rune still takes the whole
				// rune.
				for end > start+1 && !utf8.RuneStart(line[end]) {
					end--
				}
				for end < len(line) && !utf8.RuneStart(line[end]) {
					end++
				}
				lines = append(lines, line[start:end])
				start = end
			}
		} else {
			lines = append(lines, line)
		}
	}

	var (
		result  []*Chunk
		current strings.Builder
		partNum = 1
	)
	emit := func() {
		result = append(result, &Chunk{
			Category: c.Category,
			Name:     fmt.Sprintf("%s_part%d", c.Name, partNum),
			Line:     nil,
			Content:  prefix + current.String(),
		})
		partNum++
		current.Reset()
	}
	for _, line := range lines {
		if current.Len()+len(line) > maxSize && current.Len() > 0 {
			emit()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		emit()
	}
	return result
}

// splitLinesKeepEnds splits s at newlines, keeping the newline characters
// attached to their line so the pieces concatenate back to s.
func splitLinesKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
